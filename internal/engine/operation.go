package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/prompt"
	"github.com/githerd/githerd/internal/repo"
)

// Git is the slice of the command facade the engine and its operations
// consume. *git.Client satisfies it.
type Git interface {
	Checkout(ctx context.Context, dir string, opts git.CheckoutOptions) git.Result
	CreateBranch(ctx context.Context, dir, name, startPoint string) git.Result
	DeleteBranch(ctx context.Context, dir, name string, force bool) git.Result
	RenameBranch(ctx context.Context, dir, oldName, newName string) git.Result
	CherryPick(ctx context.Context, dir string, opts git.CherryPickOptions) git.Result
	CherryPickContinue(ctx context.Context, dir string) git.Result
	CherryPickSkip(ctx context.Context, dir string) git.Result
	CherryPickAbort(ctx context.Context, dir string) git.Result
	Push(ctx context.Context, dir string, opts git.PushOptions) git.Result
	Fetch(ctx context.Context, dir string, opts git.FetchOptions) git.Result
	Pull(ctx context.Context, dir string, opts git.PullOptions) git.Result
	Tag(ctx context.Context, dir string, opts git.TagOptions) git.Result
	DeleteTag(ctx context.Context, dir, name string) git.Result
	StashPush(ctx context.Context, dir, message string) git.Result
	StashPop(ctx context.Context, dir string) git.Result
	RevParse(ctx context.Context, dir, rev string) (string, error)
	BranchExists(ctx context.Context, dir, name string) (bool, error)
}

// Env carries the collaborators an operation may use while running in one
// repository.
type Env struct {
	Git    Git
	Decide prompt.Decider
	Log    *slog.Logger
}

// Outcome is what one Apply produced in one repository.
type Outcome struct {
	// Res is the merged result of the git commands the operation ran.
	Res git.Result

	// Skipped means the operation did not apply to this repository.
	Skipped bool

	// Reason annotates the outcome for the summary.
	Reason string
}

// Position is a repository's branch and revision before the operation ran.
type Position struct {
	Branch string
	Head   string
}

// Operation is one repository-level action the engine runs across all
// repositories.
type Operation interface {
	// Name labels the operation in summaries and logs.
	Name() string

	// Apply runs the operation in one repository.
	Apply(ctx context.Context, env Env, r *repo.Repository) Outcome
}

// Rollbacker is implemented by operations that can undo a completed Apply.
// Only these operations offer rollback after a failure.
type Rollbacker interface {
	Rollback(ctx context.Context, env Env, r *repo.Repository, initial Position) error
}

// Forcible is implemented by operations with a forced variant that discards
// blocking local changes.
type Forcible interface {
	ApplyForced(ctx context.Context, env Env, r *repo.Repository) Outcome
}

// BranchNamer is implemented by operations centered on one branch name. A
// successful run records the name in the recent-branches list.
type BranchNamer interface {
	BranchName() string
}

// resErr converts a failed git result into an error for rollback paths and
// savers, where a Result has no caller to inspect it.
func resErr(what string, r *repo.Repository, res git.Result) error {
	if res.Success {
		return nil
	}
	if res.Err != nil {
		return fmt.Errorf("%s in %s: %w", what, r.Name(), res.Err)
	}
	return fmt.Errorf("%s in %s: %s", what, r.Name(), res.ErrorText())
}
