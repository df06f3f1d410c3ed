package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/repo"
)

// CherryPickOp applies a batch of commits to every repository, one commit at
// a time. A commit whose changes are already present is recorded as already
// picked and the batch moves on.
type CherryPickOp struct {
	// Commits are the revisions to apply, in order.
	Commits []string

	// Record appends the origin line to each commit message.
	Record bool
}

func (o *CherryPickOp) Name() string {
	if len(o.Commits) == 1 {
		return fmt.Sprintf("cherry-pick %s", shortRev(o.Commits[0]))
	}
	return fmt.Sprintf("cherry-pick %d commits", len(o.Commits))
}

func (o *CherryPickOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	merged := git.Result{Success: true}
	var notes []string

	for _, commit := range o.Commits {
		res := env.Git.CherryPick(ctx, r.Root, git.CherryPickOptions{
			Commit: commit,
			Record: o.Record,
		})
		if res.Success {
			merged = git.Merge(merged, res)
			continue
		}

		if res.Has(git.EventNoChanges) {
			// The commit produced an empty pick. Drop it and keep going.
			skip := env.Git.CherryPickSkip(ctx, r.Root)
			merged = git.Merge(merged, skip)
			if !skip.Success {
				return Outcome{Res: merged, Reason: fmt.Sprintf("skipping empty pick of %s failed", shortRev(commit))}
			}
			notes = append(notes, fmt.Sprintf("%s already picked", shortRev(commit)))
			continue
		}

		if res.Has(git.EventConflict) {
			cont, ok := o.resolve(ctx, env, r, commit)
			if !ok {
				merged = git.Merge(git.Merge(merged, res), cont)
				return Outcome{Res: merged, Reason: fmt.Sprintf("conflicts while picking %s", shortRev(commit))}
			}
			merged = git.Merge(merged, cont)
			continue
		}

		// Anything else is a hard stop. Clear the half-applied pick so the
		// repository is not left mid-sequence.
		merged = git.Merge(merged, res)
		abort := env.Git.CherryPickAbort(ctx, r.Root)
		if !abort.Success {
			env.Log.Warn("cherry-pick abort failed", "repo", r.Name(), "error", abort.ErrorText())
		}
		return Outcome{Res: merged, Reason: fmt.Sprintf("picking %s failed: %s", shortRev(commit), res.ErrorText())}
	}

	return Outcome{Res: merged, Reason: strings.Join(notes, "; ")}
}

// resolve walks the user through conflict resolution for one commit and
// continues the pick. Declining aborts the pick. The returned result covers
// only the continuation, so a resolved pick does not taint the batch.
func (o *CherryPickOp) resolve(ctx context.Context, env Env, r *repo.Repository, commit string) (git.Result, bool) {
	if env.Decide == nil || !env.Decide.ResolveConflicts(r.Root) {
		abort := env.Git.CherryPickAbort(ctx, r.Root)
		if !abort.Success {
			env.Log.Warn("cherry-pick abort failed", "repo", r.Name(), "error", abort.ErrorText())
		}
		return abort, false
	}
	cont := env.Git.CherryPickContinue(ctx, r.Root)
	if cont.Success {
		return cont, true
	}
	if cont.Has(git.EventNoChanges) {
		// Resolving left nothing to commit. Skip it like an empty pick.
		if skip := env.Git.CherryPickSkip(ctx, r.Root); skip.Success {
			return skip, true
		}
	}
	return cont, false
}

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
