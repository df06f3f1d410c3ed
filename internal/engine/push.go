package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/repo"
)

// PushOp pushes every repository's current branch (or an explicit refspec)
// to a remote.
type PushOp struct {
	// Remote names the push target. Empty means origin.
	Remote string

	// RefSpec overrides the default current-branch push.
	RefSpec string

	// SetUpstream records the pushed branch as upstream.
	SetUpstream bool

	// ForceWithLease force-pushes, but only over the revision the local
	// remote-tracking ref expects.
	ForceWithLease bool
}

func (o *PushOp) Name() string { return "push" }

func (o *PushOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	if o.RefSpec == "" && r.Detached() {
		return Outcome{Skipped: true, Reason: "detached HEAD, nothing to push"}
	}
	res := env.Git.Push(ctx, r.Root, git.PushOptions{
		Remote:         o.Remote,
		RefSpec:        o.RefSpec,
		SetUpstream:    o.SetUpstream,
		ForceWithLease: o.ForceWithLease,
	})
	if res.Success {
		if containsFold(res.Output, "everything up-to-date") {
			return Outcome{Res: res, Reason: "everything up to date"}
		}
		return Outcome{Res: res}
	}
	return Outcome{Res: res, Reason: pushFailure(res)}
}

func pushFailure(res git.Result) string {
	if errors.Is(res.Err, git.ErrAuthFailed) {
		return "authentication failed"
	}
	all := append(append([]string{}, res.Output...), res.ErrorOutput...)
	if containsFold(all, "[rejected]") {
		if containsFold(all, "fetch first") || containsFold(all, "non-fast-forward") {
			return "rejected, the remote has newer commits; fetch first"
		}
		return "rejected by the remote"
	}
	return res.ErrorText()
}

func containsFold(lines []string, fragment string) bool {
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), fragment) {
			return true
		}
	}
	return false
}
