package engine

import (
	"context"
	"fmt"

	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/repo"
)

// TagOp creates the same tag in every repository.
type TagOp struct {
	// Tag is the tag name.
	Tag string

	// Rev is the revision to tag. Empty tags each repository's HEAD.
	Rev string

	// Message makes the tag annotated.
	Message string

	// Force replaces an existing tag.
	Force bool
}

func (o *TagOp) Name() string {
	return fmt.Sprintf("tag %s", o.Tag)
}

func (o *TagOp) Apply(ctx context.Context, env Env, r *repo.Repository) Outcome {
	if !o.Force {
		// Peel the tag so annotated tags compare by the commit they point at.
		if at, err := env.Git.RevParse(ctx, r.Root, "refs/tags/"+o.Tag+"^{commit}"); err == nil {
			want := o.Rev
			if want == "" {
				want = "HEAD"
			}
			if wantRev, err := env.Git.RevParse(ctx, r.Root, want+"^{commit}"); err == nil && wantRev == at {
				return Outcome{Skipped: true, Reason: "tag already exists at that revision"}
			}
			return Outcome{
				Res:    git.Result{ExitCode: 1},
				Reason: fmt.Sprintf("tag %s already exists at a different revision", o.Tag),
			}
		}
	}
	return Outcome{Res: env.Git.Tag(ctx, r.Root, git.TagOptions{
		Name:    o.Tag,
		Rev:     o.Rev,
		Force:   o.Force,
		Message: o.Message,
	})}
}

// Rollback removes the tag the run created.
func (o *TagOp) Rollback(ctx context.Context, env Env, r *repo.Repository, _ Position) error {
	if res := env.Git.DeleteTag(ctx, r.Root, o.Tag); !res.Success {
		return resErr("delete tag", r, res)
	}
	return nil
}
