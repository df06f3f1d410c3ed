package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/repo"
)

// FetchOp fetches refs into every repository.
type FetchOp struct {
	// Remote names the remote to fetch. Empty means origin.
	Remote string

	// All fetches every configured remote instead.
	All bool

	// Prune drops remote-tracking refs deleted upstream.
	Prune bool
}

func (o *FetchOp) Name() string { return "fetch" }

func (o *FetchOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	res := env.Git.Fetch(ctx, r.Root, git.FetchOptions{
		Remote: o.Remote,
		All:    o.All,
		Prune:  o.Prune,
	})
	if !res.Success && errors.Is(res.Err, git.ErrAuthFailed) {
		return Outcome{Res: res, Reason: "authentication failed"}
	}
	return Outcome{Res: res}
}

// PullOp pulls a remote branch into every repository.
type PullOp struct {
	// Remote names the remote to pull from. Empty means origin.
	Remote string

	// Branch is the remote branch. Empty uses the configured upstream.
	Branch string

	// Rebase replays local commits instead of merging.
	Rebase bool
}

func (o *PullOp) Name() string {
	if o.Branch != "" {
		return fmt.Sprintf("pull %s", o.Branch)
	}
	return "pull"
}

func (o *PullOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	res := env.Git.Pull(ctx, r.Root, git.PullOptions{
		Remote: o.Remote,
		Branch: o.Branch,
		Rebase: o.Rebase,
	})
	if res.Success {
		return Outcome{Res: res}
	}
	if errors.Is(res.Err, git.ErrAuthFailed) {
		return Outcome{Res: res, Reason: "authentication failed"}
	}
	if res.Has(git.EventConflict) {
		return Outcome{Res: res, Reason: "pull hit conflicts; resolve and commit them manually"}
	}
	return Outcome{Res: res}
}
