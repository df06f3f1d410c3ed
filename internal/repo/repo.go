// Package repo models the working copies an operation runs across.
package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// ErrNotRepository reports that a configured root is not a git working copy.
var ErrNotRepository = errors.New("not a git repository")

// Reader supplies the current branch and revision of a working copy.
type Reader interface {
	CurrentBranch(ctx context.Context, dir string) (string, error)
	Head(ctx context.Context, dir string) (string, error)
}

// Repository is one working copy under orchestration. Branch and Head are
// cached; callers decide when to Reload after mutating the repository.
type Repository struct {
	// Root is the path to the working tree.
	Root string

	// Branch is the cached current branch, empty on a detached HEAD.
	Branch string

	// Head is the cached revision HEAD points at, empty on an unborn branch.
	Head string

	rd Reader
}

// New returns a handle without touching the filesystem. The caller is
// expected to Reload before relying on Branch or Head.
func New(root string, rd Reader) *Repository {
	return &Repository{Root: root, rd: rd}
}

// Open verifies that root is a git working copy and loads its state.
func Open(ctx context.Context, rd Reader, root string) (*Repository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	if _, err := gitDir(abs); err != nil {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotRepository)
	}
	r := New(abs, rd)
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload refreshes the cached branch and revision.
func (r *Repository) Reload(ctx context.Context) error {
	branch, err := r.rd.CurrentBranch(ctx, r.Root)
	if err != nil {
		return fmt.Errorf("reload %s: %w", r.Root, err)
	}
	r.Branch = branch
	head, err := r.rd.Head(ctx, r.Root)
	if err != nil {
		// An unborn branch has no revision yet.
		r.Head = ""
		return nil
	}
	r.Head = head
	return nil
}

// Detached reports whether HEAD points at a revision instead of a branch.
func (r *Repository) Detached() bool {
	return r.Branch == ""
}

// Name is the short display name of the repository.
func (r *Repository) Name() string {
	return filepath.Base(r.Root)
}

// Sort orders repositories by root path, giving every multi-repository
// operation the same deterministic traversal.
func Sort(repos []*Repository) {
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].Root < repos[j].Root
	})
}

// Roots lists the root paths in order.
func Roots(repos []*Repository) []string {
	roots := make([]string, 0, len(repos))
	for _, r := range repos {
		roots = append(roots, r.Root)
	}
	return roots
}
