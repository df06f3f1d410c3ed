package engine_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/githerd/githerd/internal/engine"
	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/prompt"
	"github.com/githerd/githerd/internal/repo"
)

// fakeGit scripts facade results per "verb repo" key and records every call
// in order. Unscripted calls succeed.
type fakeGit struct {
	calls     []string
	results   map[string]git.Result
	revs      map[string]string
	branches  map[string]bool
	checkouts []git.CheckoutOptions
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		results:  map[string]git.Result{},
		revs:     map[string]string{},
		branches: map[string]bool{},
	}
}

func (f *fakeGit) script(verb, repoName string, res git.Result) {
	f.results[verb+" "+repoName] = res
}

func (f *fakeGit) run(verb, dir string, extra ...string) git.Result {
	name := filepath.Base(dir)
	f.calls = append(f.calls, strings.TrimSpace(verb+" "+name+" "+strings.Join(extra, " ")))
	if res, ok := f.results[verb+" "+name]; ok {
		// One-shot scripts let retry tests observe the second attempt.
		delete(f.results, verb+" "+name)
		return res
	}
	return git.Result{Success: true}
}

func (f *fakeGit) Checkout(_ context.Context, dir string, opts git.CheckoutOptions) git.Result {
	f.checkouts = append(f.checkouts, opts)
	extra := []string{opts.Ref}
	if opts.NewBranch != "" {
		extra = append(extra, "-b", opts.NewBranch)
	}
	if opts.Force {
		extra = append(extra, "--force")
	}
	if opts.Detach {
		extra = append(extra, "--detach")
	}
	return f.run("checkout", dir, extra...)
}

func (f *fakeGit) CreateBranch(_ context.Context, dir, name, startPoint string) git.Result {
	return f.run("branch", dir, name, startPoint)
}

func (f *fakeGit) DeleteBranch(_ context.Context, dir, name string, force bool) git.Result {
	extra := []string{name}
	if force {
		extra = append(extra, "--force")
	}
	return f.run("branch -d", dir, extra...)
}

func (f *fakeGit) RenameBranch(_ context.Context, dir, oldName, newName string) git.Result {
	return f.run("branch -m", dir, oldName, newName)
}

func (f *fakeGit) CherryPick(_ context.Context, dir string, opts git.CherryPickOptions) git.Result {
	return f.run("cherry-pick", dir, opts.Commit)
}

func (f *fakeGit) CherryPickContinue(_ context.Context, dir string) git.Result {
	return f.run("cherry-pick --continue", dir)
}

func (f *fakeGit) CherryPickSkip(_ context.Context, dir string) git.Result {
	return f.run("cherry-pick --skip", dir)
}

func (f *fakeGit) CherryPickAbort(_ context.Context, dir string) git.Result {
	return f.run("cherry-pick --abort", dir)
}

func (f *fakeGit) Push(_ context.Context, dir string, opts git.PushOptions) git.Result {
	return f.run("push", dir, opts.RefSpec)
}

func (f *fakeGit) Fetch(_ context.Context, dir string, _ git.FetchOptions) git.Result {
	return f.run("fetch", dir)
}

func (f *fakeGit) Pull(_ context.Context, dir string, _ git.PullOptions) git.Result {
	return f.run("pull", dir)
}

func (f *fakeGit) Tag(_ context.Context, dir string, opts git.TagOptions) git.Result {
	return f.run("tag", dir, opts.Name)
}

func (f *fakeGit) DeleteTag(_ context.Context, dir, name string) git.Result {
	return f.run("tag -d", dir, name)
}

func (f *fakeGit) StashPush(_ context.Context, dir, _ string) git.Result {
	return f.run("stash push", dir)
}

func (f *fakeGit) StashPop(_ context.Context, dir string) git.Result {
	return f.run("stash pop", dir)
}

func (f *fakeGit) RevParse(_ context.Context, dir, rev string) (string, error) {
	name := filepath.Base(dir)
	f.calls = append(f.calls, "rev-parse "+name+" "+rev)
	if v, ok := f.revs[name+" "+rev]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown revision %s in %s", rev, name)
}

func (f *fakeGit) BranchExists(_ context.Context, dir, name string) (bool, error) {
	return f.branches[filepath.Base(dir)+" "+name], nil
}

func (f *fakeGit) callsMatching(prefix string) []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// fakeDecider scripts the user's answers and records what was asked.
type fakeDecider struct {
	rollback      bool
	rollbackAsked int
	choice        prompt.Choice
	choiceAsked   []string
	resolve       bool
	resolveAsked  []string
	branch        string
}

func (d *fakeDecider) ConfirmRollback(title, message string) bool {
	d.rollbackAsked++
	return d.rollback
}

func (d *fakeDecider) ChooseForceOrSmart(operation string, paths []string) prompt.Choice {
	d.choiceAsked = append(d.choiceAsked, operation)
	if d.choice == "" {
		return prompt.ChoiceCancel
	}
	return d.choice
}

func (d *fakeDecider) ResolveConflicts(root string) bool {
	d.resolveAsked = append(d.resolveAsked, filepath.Base(root))
	return d.resolve
}

func (d *fakeDecider) ChooseBranch(candidates []string) string {
	return d.branch
}

type fakeSaver struct {
	ops     []string
	saveErr error
}

func (s *fakeSaver) Save(_ context.Context, r *repo.Repository, operation string) error {
	s.ops = append(s.ops, "save "+r.Name())
	return s.saveErr
}

func (s *fakeSaver) Restore(_ context.Context, r *repo.Repository) error {
	s.ops = append(s.ops, "restore "+r.Name())
	return nil
}

type fakeRecent struct {
	names []string
}

func (f *fakeRecent) RecordBranch(name string) {
	f.names = append(f.names, name)
}

// staticReader feeds Reload with fixed values so successful repositories can
// refresh their cached position.
type staticReader struct {
	branch string
	head   string
}

func (r staticReader) CurrentBranch(context.Context, string) (string, error) {
	return r.branch, nil
}

func (r staticReader) Head(context.Context, string) (string, error) {
	return r.head, nil
}

func makeRepos(names ...string) []*repo.Repository {
	repos := make([]*repo.Repository, 0, len(names))
	for _, name := range names {
		r := repo.New("/repos/"+name, staticReader{branch: "main", head: "baseline"})
		r.Branch = "main"
		r.Head = "baseline"
		repos = append(repos, r)
	}
	return repos
}

// scriptedOp is a minimal operation with per-repo outcomes.
type scriptedOp struct {
	name     string
	outcomes map[string]engine.Outcome
	applied  []string
}

func (o *scriptedOp) Name() string { return o.name }

func (o *scriptedOp) Apply(_ context.Context, _ engine.Env, r *repo.Repository) engine.Outcome {
	o.applied = append(o.applied, r.Name())
	if out, ok := o.outcomes[r.Name()]; ok {
		return out
	}
	return engine.Outcome{Res: git.Result{Success: true}}
}

// rollbackOp extends scriptedOp with recorded rollbacks.
type rollbackOp struct {
	scriptedOp
	rolledBack  []string
	rollbackErr map[string]error
}

func (o *rollbackOp) Rollback(_ context.Context, _ engine.Env, r *repo.Repository, initial engine.Position) error {
	o.rolledBack = append(o.rolledBack, r.Name()+"@"+initial.Head)
	if err, ok := o.rollbackErr[r.Name()]; ok {
		return err
	}
	return nil
}

func failedOutcome(reason string) engine.Outcome {
	return engine.Outcome{Res: git.Result{ExitCode: 1, ErrorOutput: []string{reason}}}
}

func eventOutcome(ev ...git.Event) engine.Outcome {
	return engine.Outcome{Res: git.Result{ExitCode: 1, Events: ev}}
}

var _ = Describe("Engine", func() {
	var (
		g      *fakeGit
		decide *fakeDecider
		saver  *fakeSaver
		recent *fakeRecent
	)

	BeforeEach(func() {
		g = newFakeGit()
		decide = &fakeDecider{}
		saver = &fakeSaver{}
		recent = &fakeRecent{}
	})

	newEngine := func(repos []*repo.Repository) *engine.Engine {
		return engine.New(repos, engine.Options{
			Git:    g,
			Decide: decide,
			Saver:  saver,
			Recent: recent,
		})
	}

	It("processes repositories in path order regardless of input order", func() {
		repos := makeRepos("gamma", "alpha", "beta")
		op := &scriptedOp{name: "noop"}

		summary := newEngine(repos).Run(context.Background(), op)

		Expect(op.applied).To(Equal([]string{"alpha", "beta", "gamma"}))
		Expect(summary.AllSuccessful()).To(BeTrue())
		roots := make([]string, 0, len(summary.Results))
		for _, res := range summary.Results {
			roots = append(roots, filepath.Base(res.Root))
			Expect(res.Status).To(Equal(engine.StatusSuccessful))
		}
		Expect(roots).To(Equal([]string{"alpha", "beta", "gamma"}))
	})

	It("continues past skipped repositories and reports them distinctly", func() {
		repos := makeRepos("alpha", "beta", "gamma")
		op := &scriptedOp{
			name: "checkout feature",
			outcomes: map[string]engine.Outcome{
				"beta": {Skipped: true, Reason: "already on feature"},
			},
		}

		summary := newEngine(repos).Run(context.Background(), op)

		Expect(op.applied).To(HaveLen(3))
		Expect(summary.AllSuccessful()).To(BeTrue())
		res, ok := summary.Result("/repos/beta")
		Expect(ok).To(BeTrue())
		Expect(res.Status).To(Equal(engine.StatusSkipped))
		Expect(res.Reason).To(Equal("already on feature"))
	})

	It("stops at the first failure and leaves the rest pending", func() {
		repos := makeRepos("alpha", "beta", "gamma")
		op := &scriptedOp{
			name: "checkout feature",
			outcomes: map[string]engine.Outcome{
				"beta": failedOutcome("fatal: it broke"),
			},
		}

		summary := newEngine(repos).Run(context.Background(), op)

		Expect(op.applied).To(Equal([]string{"alpha", "beta"}))
		Expect(summary.AllSuccessful()).To(BeFalse())

		statuses := map[string]engine.Status{}
		for _, res := range summary.Results {
			statuses[filepath.Base(res.Root)] = res.Status
		}
		Expect(statuses).To(Equal(map[string]engine.Status{
			"alpha": engine.StatusSuccessful,
			"beta":  engine.StatusFailed,
			"gamma": engine.StatusPending,
		}))

		failed, ok := summary.Failed()
		Expect(ok).To(BeTrue())
		Expect(failed.Reason).To(ContainSubstring("it broke"))
		pending, _ := summary.Result("/repos/gamma")
		Expect(pending.Reason).To(Equal("not started"))
	})

	Context("rollback", func() {
		It("is not offered when nothing succeeded", func() {
			repos := makeRepos("alpha", "beta")
			op := &rollbackOp{scriptedOp: scriptedOp{
				name:     "checkout feature",
				outcomes: map[string]engine.Outcome{"alpha": failedOutcome("boom")},
			}}
			decide.rollback = true

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(decide.rollbackAsked).To(BeZero())
			Expect(op.rolledBack).To(BeEmpty())
			Expect(summary.RolledBack).To(BeFalse())
		})

		It("rolls back the successful prefix in reverse order when confirmed", func() {
			repos := makeRepos("alpha", "beta", "gamma", "delta")
			op := &rollbackOp{scriptedOp: scriptedOp{
				name:     "checkout feature",
				outcomes: map[string]engine.Outcome{"gamma": failedOutcome("boom")},
			}}
			decide.rollback = true

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(decide.rollbackAsked).To(Equal(1))
			Expect(op.rolledBack).To(Equal([]string{"beta@baseline", "alpha@baseline"}))
			Expect(summary.RolledBack).To(BeTrue())
			Expect(summary.RollbackErrors).To(BeEmpty())
		})

		It("leaves completed repositories alone when declined", func() {
			repos := makeRepos("alpha", "beta")
			op := &rollbackOp{scriptedOp: scriptedOp{
				name:     "checkout feature",
				outcomes: map[string]engine.Outcome{"beta": failedOutcome("boom")},
			}}
			decide.rollback = false

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(decide.rollbackAsked).To(Equal(1))
			Expect(op.rolledBack).To(BeEmpty())
			Expect(summary.RolledBack).To(BeFalse())
		})

		It("collects rollback errors and keeps unwinding", func() {
			repos := makeRepos("alpha", "beta", "gamma")
			op := &rollbackOp{
				scriptedOp: scriptedOp{
					name:     "checkout feature",
					outcomes: map[string]engine.Outcome{"gamma": failedOutcome("boom")},
				},
				rollbackErr: map[string]error{"beta": fmt.Errorf("reflog gone")},
			}
			decide.rollback = true

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(op.rolledBack).To(Equal([]string{"beta@baseline", "alpha@baseline"}))
			Expect(summary.RollbackErrors).To(HaveLen(1))
			Expect(summary.RollbackErrors[0]).To(ContainSubstring("beta"))
		})

		It("is not offered for operations that cannot roll back", func() {
			repos := makeRepos("alpha", "beta")
			op := &scriptedOp{
				name:     "fetch",
				outcomes: map[string]engine.Outcome{"beta": failedOutcome("boom")},
			}
			decide.rollback = true

			newEngine(repos).Run(context.Background(), op)

			Expect(decide.rollbackAsked).To(BeZero())
		})
	})

	Context("blocking events", func() {
		It("treats unmerged files as fatal before anything else", func() {
			repos := makeRepos("alpha")
			op := &scriptedOp{
				name: "checkout feature",
				outcomes: map[string]engine.Outcome{
					"alpha": eventOutcome(
						git.Event{Kind: git.EventLocalChangesOverwrite, Paths: []string{"a.txt"}},
						git.Event{Kind: git.EventUnmergedFiles},
					),
				},
			}
			decide.choice = prompt.ChoiceSmart

			summary := newEngine(repos).Run(context.Background(), op)

			res := summary.Results[0]
			Expect(res.Status).To(Equal(engine.StatusFailed))
			Expect(res.Reason).To(ContainSubstring("unresolved conflicts"))
			Expect(decide.choiceAsked).To(BeEmpty())
			Expect(saver.ops).To(BeEmpty())
		})

		It("fails on untracked files with the offending paths", func() {
			repos := makeRepos("alpha")
			op := &scriptedOp{
				name: "checkout feature",
				outcomes: map[string]engine.Outcome{
					"alpha": eventOutcome(git.Event{
						Kind:  git.EventUntrackedOverwrite,
						Paths: []string{"vendor/a.go", "vendor/b.go"},
					}),
				},
			}

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(summary.Results[0].Status).To(Equal(engine.StatusFailed))
			Expect(summary.Results[0].Reason).To(ContainSubstring("vendor/a.go"))
		})
	})

	Context("local changes in the way", func() {
		localChanges := func() engine.Outcome {
			return eventOutcome(git.Event{
				Kind:  git.EventLocalChangesOverwrite,
				Paths: []string{"config.yaml"},
			})
		}

		It("shelves, retries once, and restores on the smart choice", func() {
			repos := makeRepos("alpha")
			applies := 0
			op := &retryOp{apply: func(r *repo.Repository) engine.Outcome {
				applies++
				if applies == 1 {
					return localChanges()
				}
				return engine.Outcome{Res: git.Result{Success: true}}
			}}
			decide.choice = prompt.ChoiceSmart

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(applies).To(Equal(2))
			Expect(saver.ops).To(Equal([]string{"save alpha", "restore alpha"}))
			Expect(summary.Results[0].Status).To(Equal(engine.StatusSuccessful))
		})

		It("restores the shelf even when the retry fails, then reports failure", func() {
			repos := makeRepos("alpha")
			op := &retryOp{apply: func(r *repo.Repository) engine.Outcome {
				return localChanges()
			}}
			decide.choice = prompt.ChoiceSmart

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(saver.ops).To(Equal([]string{"save alpha", "restore alpha"}))
			Expect(summary.Results[0].Status).To(Equal(engine.StatusFailed))
			Expect(summary.Results[0].Reason).To(ContainSubstring("after shelving"))
		})

		It("uses the forced variant on the force choice", func() {
			repos := makeRepos("alpha")
			op := &forcibleOp{}
			decide.choice = prompt.ChoiceForce

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(op.forced).To(Equal([]string{"alpha"}))
			Expect(saver.ops).To(BeEmpty())
			Expect(summary.Results[0].Status).To(Equal(engine.StatusSuccessful))
			Expect(summary.Results[0].Reason).To(ContainSubstring("discarded"))
		})

		It("fails when force is chosen but the operation cannot force", func() {
			repos := makeRepos("alpha")
			op := &retryOp{apply: func(r *repo.Repository) engine.Outcome {
				return localChanges()
			}}
			decide.choice = prompt.ChoiceForce

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(summary.Results[0].Status).To(Equal(engine.StatusFailed))
			Expect(summary.Results[0].Reason).To(ContainSubstring("config.yaml"))
		})

		It("fails the repository when the user cancels", func() {
			repos := makeRepos("alpha", "beta")
			op := &retryOp{apply: func(r *repo.Repository) engine.Outcome {
				if r.Name() == "alpha" {
					return localChanges()
				}
				return engine.Outcome{Res: git.Result{Success: true}}
			}}
			decide.choice = prompt.ChoiceCancel

			summary := newEngine(repos).Run(context.Background(), op)

			Expect(summary.Results[0].Status).To(Equal(engine.StatusFailed))
			status, _ := summary.Result("/repos/beta")
			Expect(status.Status).To(Equal(engine.StatusPending))
		})
	})

	Context("recent branches", func() {
		It("records the branch after a fully successful run", func() {
			repos := makeRepos("alpha", "beta")
			op := &namedOp{scriptedOp: scriptedOp{name: "checkout feature"}, branch: "feature"}

			newEngine(repos).Run(context.Background(), op)

			Expect(recent.names).To(Equal([]string{"feature"}))
		})

		It("does not record the branch after a halted run", func() {
			repos := makeRepos("alpha", "beta")
			op := &namedOp{
				scriptedOp: scriptedOp{
					name:     "checkout feature",
					outcomes: map[string]engine.Outcome{"beta": failedOutcome("boom")},
				},
				branch: "feature",
			}

			newEngine(repos).Run(context.Background(), op)

			Expect(recent.names).To(BeEmpty())
		})
	})

	It("marks every repository failed or pending on a canceled context", func() {
		repos := makeRepos("alpha", "beta")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		op := &scriptedOp{name: "fetch"}

		summary := newEngine(repos).Run(ctx, op)

		Expect(op.applied).To(BeEmpty())
		first, _ := summary.Result("/repos/alpha")
		Expect(first.Status).To(Equal(engine.StatusFailed))
		Expect(first.Reason).To(Equal("canceled"))
		second, _ := summary.Result("/repos/beta")
		Expect(second.Status).To(Equal(engine.StatusPending))
	})
})

// retryOp delegates Apply to a closure so a test can vary outcomes between
// attempts.
type retryOp struct {
	apply func(r *repo.Repository) engine.Outcome
}

func (o *retryOp) Name() string { return "checkout feature" }

func (o *retryOp) Apply(_ context.Context, _ engine.Env, r *repo.Repository) engine.Outcome {
	return o.apply(r)
}

type forcibleOp struct {
	forced []string
}

func (o *forcibleOp) Name() string { return "checkout feature" }

func (o *forcibleOp) Apply(_ context.Context, _ engine.Env, r *repo.Repository) engine.Outcome {
	return engine.Outcome{Res: git.Result{ExitCode: 1, Events: []git.Event{{
		Kind:  git.EventLocalChangesOverwrite,
		Paths: []string{"config.yaml"},
	}}}}
}

func (o *forcibleOp) ApplyForced(_ context.Context, _ engine.Env, r *repo.Repository) engine.Outcome {
	o.forced = append(o.forced, r.Name())
	return engine.Outcome{Res: git.Result{Success: true}}
}

type namedOp struct {
	scriptedOp
	branch string
}

func (o *namedOp) BranchName() string { return o.branch }
