package git

import "context"

// ResetMode selects how reset treats the index and working tree.
type ResetMode string

const (
	ResetSoft  ResetMode = "--soft"
	ResetMixed ResetMode = "--mixed"
	ResetHard  ResetMode = "--hard"

	// ResetKeep moves HEAD but refuses to lose local modifications, which
	// makes it the safe choice for rolling back completed operations.
	ResetKeep ResetMode = "--keep"
)

// Reset moves HEAD of the current branch to the given revision.
func (c *Client) Reset(ctx context.Context, dir string, mode ResetMode, rev string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "reset", Args: []string{string(mode), rev}, Lock: LockWrite,
		Detect: []Detector{DetectLocalChangesOverwrite("")},
	})
}

// StashPush saves local modifications away with the given message.
func (c *Client) StashPush(ctx context.Context, dir, message string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "stash", Args: []string{"push", "-m", message}, Lock: LockWrite,
	})
}

// StashPop restores the most recently stashed modifications and drops the
// stash entry on success.
func (c *Client) StashPop(ctx context.Context, dir string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "stash", Args: []string{"pop"}, Lock: LockWrite,
		Detect: []Detector{DetectConflict(), DetectUntrackedOverwrite()},
	})
}

// TagOptions controls tag creation.
type TagOptions struct {
	// Name is the tag name.
	Name string

	// Rev is the revision to tag. Empty tags HEAD.
	Rev string

	// Force replaces an existing tag of the same name.
	Force bool

	// Message creates an annotated tag with this message.
	Message string
}

// Tag creates a tag.
func (c *Client) Tag(ctx context.Context, dir string, opts TagOptions) Result {
	args := []string{}
	if opts.Force {
		args = append(args, "--force")
	}
	if opts.Message != "" {
		args = append(args, "-a", "-m", opts.Message)
	}
	args = append(args, opts.Name)
	if opts.Rev != "" {
		args = append(args, opts.Rev)
	}
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "tag", Args: args, Lock: LockWrite,
	})
}

// DeleteTag deletes a local tag.
func (c *Client) DeleteTag(ctx context.Context, dir, name string) Result {
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "tag", Args: []string{"-d", name}, Lock: LockWrite,
	})
}
