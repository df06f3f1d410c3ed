// Package engine runs one git operation across a set of repositories,
// stopping on the first hard failure and offering rollback of what already
// completed.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/prompt"
	"github.com/githerd/githerd/internal/repo"
)

// RecentRecorder remembers branch names the user worked with.
type RecentRecorder interface {
	RecordBranch(name string)
}

// Options configures an Engine.
type Options struct {
	Git    Git
	Decide prompt.Decider

	// Saver shelves local changes for smart retries. Nil gets a stash-backed
	// saver over Git.
	Saver Saver

	// Recent, when set, receives branch names from successful branch
	// operations.
	Recent RecentRecorder

	Log *slog.Logger
}

// Engine runs operations across repositories in deterministic order.
type Engine struct {
	repos  []*repo.Repository
	g      Git
	decide prompt.Decider
	saver  Saver
	recent RecentRecorder
	log    *slog.Logger
}

// New returns an Engine over the given repositories. The engine keeps its own
// sorted copy, so every run traverses the same order.
func New(repos []*repo.Repository, opts Options) *Engine {
	sorted := append([]*repo.Repository(nil), repos...)
	repo.Sort(sorted)
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "engine")
	saver := opts.Saver
	if saver == nil {
		saver = NewStashSaver(opts.Git, log)
	}
	return &Engine{
		repos:  sorted,
		g:      opts.Git,
		decide: opts.Decide,
		saver:  saver,
		recent: opts.Recent,
		log:    log,
	}
}

// Repositories returns the engine's traversal order.
func (e *Engine) Repositories() []*repo.Repository {
	return e.repos
}

// Run executes the operation repository by repository. The first failed or
// suspended repository halts the run; repositories after it stay pending.
// When at least one repository already completed, the user is offered a
// rollback. The summary always covers every repository.
func (e *Engine) Run(ctx context.Context, op Operation) Summary {
	summary := Summary{Operation: op.Name()}
	env := Env{Git: e.g, Decide: e.decide, Log: e.log}

	initials := make(map[string]Position, len(e.repos))
	var succeeded []*repo.Repository
	halted := false

	for _, r := range e.repos {
		if halted {
			summary.Results = append(summary.Results, RepoResult{
				Root: r.Root, Status: StatusPending, Reason: "not started",
			})
			continue
		}
		if err := ctx.Err(); err != nil {
			halted = true
			summary.Results = append(summary.Results, RepoResult{
				Root: r.Root, Status: StatusFailed, Reason: "canceled",
			})
			continue
		}

		initials[r.Root] = Position{Branch: r.Branch, Head: r.Head}
		result := e.runOne(ctx, env, op, r)
		summary.Results = append(summary.Results, result)

		switch result.Status {
		case StatusSuccessful:
			succeeded = append(succeeded, r)
			if err := r.Reload(ctx); err != nil {
				e.log.Warn("reload after operation failed", "repo", r.Name(), "error", err)
			}
		case StatusSkipped:
			// Move on.
		default:
			halted = true
			e.log.Error("operation halted",
				"operation", op.Name(), "repo", r.Name(),
				"status", string(result.Status), "reason", result.Reason)
		}
	}

	if halted && len(succeeded) > 0 {
		e.offerRollback(ctx, env, op, succeeded, initials, &summary)
	}
	if !halted {
		e.recordBranch(op)
	}
	return summary
}

func (e *Engine) runOne(ctx context.Context, env Env, op Operation, r *repo.Repository) RepoResult {
	e.log.Info("running", "operation", op.Name(), "repo", r.Name())
	out := op.Apply(ctx, env, r)

	if out.Skipped {
		e.log.Info("skipped", "operation", op.Name(), "repo", r.Name(), "reason", out.Reason)
		return RepoResult{Root: r.Root, Status: StatusSkipped, Reason: out.Reason}
	}
	if out.Res.Success {
		return RepoResult{Root: r.Root, Status: StatusSuccessful, Reason: out.Reason}
	}
	if out.Res.Err != nil && ctx.Err() != nil {
		return RepoResult{Root: r.Root, Status: StatusFailed, Reason: "canceled"}
	}

	// Events are examined in fixed priority, from the situations the user
	// must fix by hand down to the generic failure.
	if _, ok := out.Res.First(git.EventUnmergedFiles); ok {
		return RepoResult{
			Root: r.Root, Status: StatusFailed,
			Reason: "unresolved conflicts from an earlier operation; resolve and commit them first",
		}
	}
	if ev, ok := out.Res.First(git.EventUntrackedOverwrite); ok {
		return RepoResult{
			Root: r.Root, Status: StatusFailed,
			Reason: "untracked files would be overwritten: " + pathList(ev.Paths),
		}
	}
	if ev, ok := out.Res.First(git.EventLocalChangesOverwrite); ok {
		return e.retryOverLocalChanges(ctx, env, op, r, ev)
	}
	if out.Reason != "" {
		return RepoResult{Root: r.Root, Status: StatusFailed, Reason: out.Reason}
	}
	return RepoResult{Root: r.Root, Status: StatusFailed, Reason: out.Res.ErrorText()}
}

// retryOverLocalChanges handles the local-changes refusal: the user picks
// between shelving the changes and retrying once, discarding them, or giving
// up.
func (e *Engine) retryOverLocalChanges(ctx context.Context, env Env, op Operation, r *repo.Repository, ev git.Event) RepoResult {
	failed := RepoResult{
		Root: r.Root, Status: StatusFailed,
		Reason: "local changes would be overwritten: " + pathList(ev.Paths),
	}
	if e.decide == nil {
		return failed
	}

	switch e.decide.ChooseForceOrSmart(op.Name(), ev.Paths) {
	case prompt.ChoiceForce:
		forcible, ok := op.(Forcible)
		if !ok {
			return failed
		}
		out := forcible.ApplyForced(ctx, env, r)
		if out.Res.Success {
			return RepoResult{Root: r.Root, Status: StatusSuccessful, Reason: "local changes discarded"}
		}
		return RepoResult{Root: r.Root, Status: StatusFailed, Reason: out.Res.ErrorText()}

	case prompt.ChoiceSmart:
		if err := e.saver.Save(ctx, r, op.Name()); err != nil {
			return RepoResult{Root: r.Root, Status: StatusFailed, Reason: fmt.Sprintf("save local changes: %v", err)}
		}
		out := op.Apply(ctx, env, r)
		restoreErr := e.saver.Restore(ctx, r)
		if restoreErr != nil {
			e.log.Warn("restoring shelved changes failed", "repo", r.Name(), "error", restoreErr)
		}
		if out.Res.Success {
			result := RepoResult{Root: r.Root, Status: StatusSuccessful}
			if restoreErr != nil {
				result.Reason = fmt.Sprintf("completed, but restoring shelved changes failed: %v", restoreErr)
			}
			return result
		}
		return RepoResult{
			Root: r.Root, Status: StatusFailed,
			Reason: "failed again after shelving local changes: " + out.Res.ErrorText(),
		}

	default:
		return failed
	}
}

// offerRollback asks the user and rolls the completed repositories back in
// reverse order.
func (e *Engine) offerRollback(ctx context.Context, env Env, op Operation, succeeded []*repo.Repository, initials map[string]Position, summary *Summary) {
	rollbacker, ok := op.(Rollbacker)
	if !ok || e.decide == nil {
		return
	}

	names := make([]string, 0, len(succeeded))
	for _, r := range succeeded {
		names = append(names, r.Name())
	}
	title := fmt.Sprintf("%s failed", op.Name())
	message := fmt.Sprintf("The operation completed in: %s.", strings.Join(names, ", "))
	if !e.decide.ConfirmRollback(title, message) {
		return
	}

	summary.RolledBack = true
	for i := len(succeeded) - 1; i >= 0; i-- {
		r := succeeded[i]
		if err := rollbacker.Rollback(ctx, env, r, initials[r.Root]); err != nil {
			summary.RollbackErrors = append(summary.RollbackErrors, fmt.Sprintf("%s: %v", r.Name(), err))
			e.log.Error("rollback failed", "repo", r.Name(), "error", err)
			continue
		}
		if err := r.Reload(ctx); err != nil {
			e.log.Warn("reload after rollback failed", "repo", r.Name(), "error", err)
		}
	}
}

func (e *Engine) recordBranch(op Operation) {
	if e.recent == nil {
		return
	}
	namer, ok := op.(BranchNamer)
	if !ok {
		return
	}
	if name := namer.BranchName(); name != "" {
		e.recent.RecordBranch(name)
	}
}

func pathList(paths []string) string {
	const max = 5
	if len(paths) == 0 {
		return "(unknown files)"
	}
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(paths[:max], ", "), len(paths)-max)
}
