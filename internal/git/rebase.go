package git

import "context"

// RebaseOptions controls how a rebase is started.
type RebaseOptions struct {
	// Upstream is the commit to rebase onto, in the sense of the first
	// positional rebase argument.
	Upstream string

	// Onto, when set, transplants the commits onto this ref instead of
	// Upstream.
	Onto string

	// Branch, when set, is checked out and rebased instead of the current
	// branch.
	Branch string

	// Interactive opens the todo list through the configured sequence editor.
	Interactive bool

	// RebaseMerges recreates merge commits instead of flattening history.
	RebaseMerges bool

	// Env holds extra environment entries, such as the sequence editor
	// bridge, applied to this invocation only.
	Env []string
}

func rebaseDetectors() []Detector {
	return []Detector{
		DetectConflict(),
		DetectNoChanges(),
		DetectDirtyTree(),
		DetectLocalChangesOverwrite(""),
		DetectUntrackedOverwrite(),
		DetectUnmergedFiles(),
		DetectOperationInProgress(),
	}
}

// Rebase starts a rebase in the repository.
func (c *Client) Rebase(ctx context.Context, dir string, opts RebaseOptions) Result {
	args := []string{}
	if opts.Interactive {
		args = append(args, "--interactive")
	}
	if opts.RebaseMerges {
		args = append(args, "--rebase-merges")
	}
	if opts.Onto != "" {
		args = append(args, "--onto", opts.Onto)
	}
	if opts.Upstream != "" {
		args = append(args, opts.Upstream)
	}
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "rebase", Args: args, Lock: LockWrite,
		Detect: rebaseDetectors(),
		Env:    opts.Env,
	})
}

// RebaseContinue resumes a stopped rebase. The commit message editor is
// suppressed so prepared messages are taken as they are.
func (c *Client) RebaseContinue(ctx context.Context, dir string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "rebase", Args: []string{"--continue"}, Lock: LockWrite,
		Detect: rebaseDetectors(),
		Env:    []string{"GIT_EDITOR=true"},
	})
}

// RebaseSkip drops the current commit and resumes a stopped rebase.
func (c *Client) RebaseSkip(ctx context.Context, dir string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "rebase", Args: []string{"--skip"}, Lock: LockWrite,
		Detect: rebaseDetectors(),
		Env:    []string{"GIT_EDITOR=true"},
	})
}

// RebaseAbort abandons a stopped rebase and returns to the pre-rebase state.
func (c *Client) RebaseAbort(ctx context.Context, dir string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "rebase", Args: []string{"--abort"}, Lock: LockWrite,
	})
}
