package git

import "context"

// CheckoutOptions controls a checkout invocation.
type CheckoutOptions struct {
	// Ref is the branch, tag or revision to check out.
	Ref string

	// NewBranch, when set, creates that branch at Ref and checks it out.
	NewBranch string

	// Force discards local modifications standing in the way.
	Force bool

	// Detach checks out the revision without moving any branch ref.
	Detach bool
}

// Checkout switches the working tree to the given ref.
func (c *Client) Checkout(ctx context.Context, dir string, opts CheckoutOptions) Result {
	args := []string{}
	if opts.Force {
		args = append(args, "--force")
	}
	if opts.Detach {
		args = append(args, "--detach")
	}
	if opts.NewBranch != "" {
		args = append(args, "-b", opts.NewBranch)
	}
	if opts.Ref != "" {
		args = append(args, opts.Ref)
	}
	// Trailing separator keeps refs from being read as pathspecs.
	args = append(args, "--")
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "checkout", Args: args, Lock: LockWrite,
		Detect: []Detector{
			DetectLocalChangesOverwrite("checkout"),
			DetectUntrackedOverwrite(),
			DetectUnmergedFiles(),
		},
	})
}

// CreateBranch creates a branch at startPoint without checking it out. An
// empty startPoint means the current HEAD.
func (c *Client) CreateBranch(ctx context.Context, dir, name, startPoint string) Result {
	args := []string{name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "branch", Args: args, Lock: LockWrite,
	})
}

// DeleteBranch deletes a local branch. Without force, git refuses branches it
// considers unmerged, which surfaces as a not-fully-merged event.
func (c *Client) DeleteBranch(ctx context.Context, dir, name string, force bool) Result {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "branch", Args: []string{flag, name}, Lock: LockWrite,
		Detect: []Detector{DetectNotFullyMerged()},
	})
}

// RenameBranch renames a local branch.
func (c *Client) RenameBranch(ctx context.Context, dir, oldName, newName string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "branch", Args: []string{"-m", oldName, newName}, Lock: LockWrite,
	})
}
