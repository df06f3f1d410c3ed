package git

import (
	"context"
	"strconv"
)

// CherryPickOptions controls a single cherry-pick invocation.
type CherryPickOptions struct {
	// Commit is the revision to apply.
	Commit string

	// Record appends the origin line to the commit message, as -x does.
	Record bool

	// NoCommit applies the change without committing it.
	NoCommit bool

	// Mainline selects the parent number when picking a merge commit.
	Mainline int
}

func cherryPickDetectors() []Detector {
	return []Detector{
		DetectConflict(),
		DetectNoChanges(),
		DetectLocalChangesOverwrite("cherry-pick"),
		DetectUntrackedOverwrite(),
		DetectUnmergedFiles(),
		DetectOperationInProgress(),
	}
}

// CherryPick applies one commit onto the current branch.
func (c *Client) CherryPick(ctx context.Context, dir string, opts CherryPickOptions) Result {
	args := []string{}
	if opts.Record {
		args = append(args, "-x")
	}
	if opts.NoCommit {
		args = append(args, "--no-commit")
	}
	if opts.Mainline > 0 {
		args = append(args, "-m", strconv.Itoa(opts.Mainline))
	}
	args = append(args, opts.Commit)
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "cherry-pick", Args: args, Lock: LockWrite,
		Detect: cherryPickDetectors(),
	})
}

// CherryPickContinue resumes a cherry-pick stopped on conflicts.
func (c *Client) CherryPickContinue(ctx context.Context, dir string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "cherry-pick", Args: []string{"--continue"}, Lock: LockWrite,
		Detect: cherryPickDetectors(),
		Env:    []string{"GIT_EDITOR=true"},
	})
}

// CherryPickSkip drops the current commit and resumes the sequence.
func (c *Client) CherryPickSkip(ctx context.Context, dir string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "cherry-pick", Args: []string{"--skip"}, Lock: LockWrite,
		Detect: cherryPickDetectors(),
	})
}

// CherryPickAbort abandons the cherry-pick sequence and restores the
// pre-sequence state. An abort with no sequence in flight is tolerated.
func (c *Client) CherryPickAbort(ctx context.Context, dir string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "cherry-pick", Args: []string{"--abort"}, Lock: LockWrite,
		TolerateExit: TolerateExitWhen(128, "no cherry-pick"),
	})
}
