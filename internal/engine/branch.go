package engine

import (
	"context"
	"fmt"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/repo"
)

// CreateBranchOp creates a branch in every repository without checking it
// out. A repository that already has the branch at the requested revision is
// skipped.
type CreateBranchOp struct {
	// Branch is the name to create.
	Branch string

	// StartPoint is the revision to create the branch at. Empty means HEAD.
	StartPoint string
}

func (o *CreateBranchOp) Name() string {
	return fmt.Sprintf("create branch %s", o.Branch)
}

func (o *CreateBranchOp) BranchName() string { return o.Branch }

func (o *CreateBranchOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	exists, err := env.Git.BranchExists(ctx, r.Root, o.Branch)
	if err != nil {
		return Outcome{Res: git.Result{Err: err}, Reason: fmt.Sprintf("check branch: %v", err)}
	}
	if exists {
		at, err := env.Git.RevParse(ctx, r.Root, "refs/heads/"+o.Branch)
		if err == nil {
			want := o.StartPoint
			if want == "" {
				want = "HEAD"
			}
			if wantRev, err := env.Git.RevParse(ctx, r.Root, want); err == nil && wantRev == at {
				return Outcome{Skipped: true, Reason: "branch already exists at that revision"}
			}
		}
		return Outcome{
			Res:    git.Result{ExitCode: 1},
			Reason: fmt.Sprintf("branch %s already exists at a different revision", o.Branch),
		}
	}
	return Outcome{Res: env.Git.CreateBranch(ctx, r.Root, o.Branch, o.StartPoint)}
}

// Rollback deletes the branch the run created.
func (o *CreateBranchOp) Rollback(ctx context.Context, env Env, r *repo.Repository, _ Position) error {
	if res := env.Git.DeleteBranch(ctx, r.Root, o.Branch, true); !res.Success {
		return resErr("delete created branch", r, res)
	}
	return nil
}

// DeleteBranchOp deletes a branch in every repository. Repositories without
// the branch are skipped. An unmerged branch is only deleted with Force.
type DeleteBranchOp struct {
	// Branch is the name to delete.
	Branch string

	// Force deletes the branch even when it is not merged anywhere.
	Force bool

	deleted map[string]string
}

func (o *DeleteBranchOp) Name() string {
	return fmt.Sprintf("delete branch %s", o.Branch)
}

func (o *DeleteBranchOp) BranchName() string { return o.Branch }

func (o *DeleteBranchOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	head, err := env.Git.RevParse(ctx, r.Root, "refs/heads/"+o.Branch)
	if err != nil {
		return Outcome{Skipped: true, Reason: "branch not found"}
	}
	if r.Branch == o.Branch {
		return Outcome{
			Res:    git.Result{ExitCode: 1},
			Reason: fmt.Sprintf("branch %s is checked out here", o.Branch),
		}
	}

	res := env.Git.DeleteBranch(ctx, r.Root, o.Branch, o.Force)
	if !res.Success {
		if ev, ok := res.First(git.EventNotFullyMerged); ok {
			reason := fmt.Sprintf("branch %s is not fully merged", o.Branch)
			if ev.Ref != "" {
				reason = fmt.Sprintf("branch %s is not fully merged to %s", o.Branch, ev.Ref)
			}
			return Outcome{Res: res, Reason: reason + "; rerun with force to delete anyway"}
		}
		return Outcome{Res: res}
	}

	// Remember where the branch pointed so a rollback can resurrect it.
	if o.deleted == nil {
		o.deleted = make(map[string]string)
	}
	o.deleted[r.Root] = head
	return Outcome{Res: res}
}

// Rollback recreates the deleted branch at its old revision.
func (o *DeleteBranchOp) Rollback(ctx context.Context, env Env, r *repo.Repository, _ Position) error {
	head, ok := o.deleted[r.Root]
	if !ok {
		return nil
	}
	if res := env.Git.CreateBranch(ctx, r.Root, o.Branch, head); !res.Success {
		return resErr("recreate branch", r, res)
	}
	return nil
}

// RenameBranchOp renames a branch in every repository that has it.
type RenameBranchOp struct {
	From string
	To   string
}

func (o *RenameBranchOp) Name() string {
	return fmt.Sprintf("rename branch %s to %s", o.From, o.To)
}

func (o *RenameBranchOp) BranchName() string { return o.To }

func (o *RenameBranchOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	exists, err := env.Git.BranchExists(ctx, r.Root, o.From)
	if err != nil {
		return Outcome{Res: git.Result{Err: err}, Reason: fmt.Sprintf("check branch: %v", err)}
	}
	if !exists {
		if renamed, err := env.Git.BranchExists(ctx, r.Root, o.To); err == nil && renamed {
			return Outcome{Skipped: true, Reason: "already renamed"}
		}
		return Outcome{Skipped: true, Reason: "branch not found"}
	}
	return Outcome{Res: env.Git.RenameBranch(ctx, r.Root, o.From, o.To)}
}

// Rollback renames the branch back.
func (o *RenameBranchOp) Rollback(ctx context.Context, env Env, r *repo.Repository, _ Position) error {
	if res := env.Git.RenameBranch(ctx, r.Root, o.To, o.From); !res.Success {
		return resErr("rename back", r, res)
	}
	return nil
}
