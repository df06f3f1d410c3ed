package git

import (
	"context"
	"strings"
)

// PushOptions controls a push invocation.
type PushOptions struct {
	// Remote names the remote to push to. Empty means origin.
	Remote string

	// RefSpec is the refspec to push. Empty pushes the current branch to its
	// configured upstream.
	RefSpec string

	// SetUpstream records the pushed branch as upstream.
	SetUpstream bool

	// Force overwrites the remote ref unconditionally.
	Force bool

	// ForceWithLease overwrites the remote ref only if it still points where
	// the local remote-tracking ref says.
	ForceWithLease bool

	// Tags pushes tags as well.
	Tags bool
}

// Push uploads refs to a remote. A push that finds everything up to date may
// exit non-zero depending on the git version and still counts as success.
func (c *Client) Push(ctx context.Context, dir string, opts PushOptions) Result {
	args := []string{}
	if opts.SetUpstream {
		args = append(args, "--set-upstream")
	}
	if opts.ForceWithLease {
		args = append(args, "--force-with-lease")
	} else if opts.Force {
		args = append(args, "--force")
	}
	if opts.Tags {
		args = append(args, "--tags")
	}
	args = append(args, remoteName(opts.Remote))
	if opts.RefSpec != "" {
		args = append(args, opts.RefSpec)
	}
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "push", Args: args, Lock: LockWrite, Remote: true,
		TolerateExit: TolerateExitWhen(1, "everything up-to-date"),
	})
}

// FetchOptions controls a fetch invocation.
type FetchOptions struct {
	// Remote names the remote to fetch from. Empty means origin.
	Remote string

	// RefSpecs limits the fetch to the given refspecs.
	RefSpecs []string

	// All fetches every configured remote and ignores Remote.
	All bool

	// Prune drops remote-tracking refs that vanished upstream.
	Prune bool
}

// Fetch downloads refs and objects from a remote.
func (c *Client) Fetch(ctx context.Context, dir string, opts FetchOptions) Result {
	args := []string{}
	if opts.Prune {
		args = append(args, "--prune")
	}
	if opts.All {
		args = append(args, "--all")
	} else {
		args = append(args, remoteName(opts.Remote))
		args = append(args, opts.RefSpecs...)
	}
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "fetch", Args: args, Lock: LockWrite, Remote: true,
	})
}

// PullOptions controls a pull invocation.
type PullOptions struct {
	// Remote names the remote to pull from. Empty means origin.
	Remote string

	// Branch is the remote branch to pull. Empty uses the configured
	// upstream.
	Branch string

	// Rebase replays local commits on top of the fetched branch instead of
	// merging.
	Rebase bool
}

// Pull fetches and integrates a remote branch.
func (c *Client) Pull(ctx context.Context, dir string, opts PullOptions) Result {
	args := []string{}
	if opts.Rebase {
		args = append(args, "--rebase")
	}
	args = append(args, remoteName(opts.Remote))
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}
	return c.run.Run(ctx, Command{
		Dir: dir, Name: "pull", Args: args, Lock: LockWrite, Remote: true,
		Detect: []Detector{
			DetectConflict(),
			DetectLocalChangesOverwrite("merge"),
			DetectUntrackedOverwrite(),
			DetectUnmergedFiles(),
			DetectDirtyTree(),
		},
	})
}

// RemoteRef is one ref advertised by a remote.
type RemoteRef struct {
	Hash string
	Name string
}

// LsRemote lists the refs a remote advertises, optionally narrowed to the
// given patterns. The parsed refs are returned alongside the raw Result.
func (c *Client) LsRemote(ctx context.Context, dir, remote string, patterns ...string) ([]RemoteRef, Result) {
	args := []string{remoteName(remote)}
	args = append(args, patterns...)
	res := c.run.Run(ctx, Command{
		Dir: dir, Name: "ls-remote", Args: args, Lock: LockRead, Remote: true,
	})
	if !res.Success {
		return nil, res
	}
	var refs []RemoteRef
	for _, line := range res.Output {
		hash, name, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		refs = append(refs, RemoteRef{Hash: strings.TrimSpace(hash), Name: strings.TrimSpace(name)})
	}
	return refs, res
}

func remoteName(name string) string {
	if name == "" {
		return "origin"
	}
	return name
}
