package engine

import (
	"context"
	"fmt"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/repo"
)

// CheckoutOp switches every repository to a ref, optionally creating a new
// branch there first.
type CheckoutOp struct {
	// Ref is the branch, tag or revision to check out.
	Ref string

	// NewBranch, when set, creates that branch at Ref and checks it out.
	NewBranch string

	// Detach checks the ref out without moving any branch ref.
	Detach bool

	created map[string]bool
}

func (o *CheckoutOp) Name() string {
	if o.NewBranch != "" {
		return fmt.Sprintf("checkout new branch %s", o.NewBranch)
	}
	return fmt.Sprintf("checkout %s", o.Ref)
}

func (o *CheckoutOp) BranchName() string {
	if o.NewBranch != "" {
		return o.NewBranch
	}
	if o.Detach {
		return ""
	}
	return o.Ref
}

func (o *CheckoutOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	return o.apply(ctx, env, r, false)
}

func (o *CheckoutOp) ApplyForced(ctx context.Context, env Env, r *repo.Repository) Outcome {
	return o.apply(ctx, env, r, true)
}

func (o *CheckoutOp) apply(ctx context.Context, env Env, r *repo.Repository, force bool) Outcome {
	if o.NewBranch == "" && !o.Detach && r.Branch == o.Ref {
		return Outcome{Skipped: true, Reason: fmt.Sprintf("already on %s", o.Ref)}
	}
	res := env.Git.Checkout(ctx, r.Root, git.CheckoutOptions{
		Ref:       o.Ref,
		NewBranch: o.NewBranch,
		Detach:    o.Detach,
		Force:     force,
	})
	if res.Success && o.NewBranch != "" {
		if o.created == nil {
			o.created = make(map[string]bool)
		}
		o.created[r.Root] = true
	}
	return Outcome{Res: res}
}

// Rollback returns the repository to where it was and deletes a branch this
// run created.
func (o *CheckoutOp) Rollback(ctx context.Context, env Env, r *repo.Repository, initial Position) error {
	opts := git.CheckoutOptions{Ref: initial.Branch}
	if initial.Branch == "" {
		opts = git.CheckoutOptions{Ref: initial.Head, Detach: true}
	}
	if res := env.Git.Checkout(ctx, r.Root, opts); !res.Success {
		return resErr("checkout back", r, res)
	}
	if o.created[r.Root] {
		if res := env.Git.DeleteBranch(ctx, r.Root, o.NewBranch, true); !res.Success {
			return resErr("delete created branch", r, res)
		}
	}
	return nil
}
