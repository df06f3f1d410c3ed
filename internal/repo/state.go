package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProgressState names the sequencing operation a repository is in the middle
// of, derived from marker files under the git directory.
type ProgressState string

const (
	StateNone          ProgressState = "none"
	StateRebasing      ProgressState = "rebasing"
	StateCherryPicking ProgressState = "cherry-picking"
	StateMerging       ProgressState = "merging"
	StateReverting     ProgressState = "reverting"
)

// State probes the git directory for in-progress sequencing operations.
func (r *Repository) State() ProgressState {
	dir, err := gitDir(r.Root)
	if err != nil {
		return StateNone
	}
	switch {
	case pathExists(filepath.Join(dir, "rebase-merge")),
		pathExists(filepath.Join(dir, "rebase-apply")):
		return StateRebasing
	case pathExists(filepath.Join(dir, "CHERRY_PICK_HEAD")):
		return StateCherryPicking
	case pathExists(filepath.Join(dir, "MERGE_HEAD")):
		return StateMerging
	case pathExists(filepath.Join(dir, "REVERT_HEAD")):
		return StateReverting
	}
	return StateNone
}

// RebaseInProgress reports whether a rebase is stopped in the repository.
func (r *Repository) RebaseInProgress() bool {
	return r.State() == StateRebasing
}

// gitDir resolves the git directory of a working copy. A .git file, as
// written for worktrees and submodules, is followed to its target.
func gitDir(root string) (string, error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return dotGit, nil
	}
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "gitdir:"))
	if target == "" {
		return "", fmt.Errorf("%s: malformed gitdir pointer", dotGit)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	return filepath.Clean(target), nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
