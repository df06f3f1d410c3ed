package rebase_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/githerd/githerd/internal/engine"
	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/prompt"
	"github.com/githerd/githerd/internal/rebase"
	"github.com/githerd/githerd/internal/repo"
)

// fakeGit queues rebase-family results per repository and records every call
// in order. Unscripted calls succeed; an exhausted queue yields a clean
// rebase.
type fakeGit struct {
	calls     []string
	queue     map[string][]git.Result
	results   map[string]git.Result
	unmerged  map[string][]string
	startOpts []git.RebaseOptions
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		queue:    map[string][]git.Result{},
		results:  map[string]git.Result{},
		unmerged: map[string][]string{},
	}
}

func (f *fakeGit) enqueue(repoName string, res ...git.Result) {
	f.queue[repoName] = append(f.queue[repoName], res...)
}

func (f *fakeGit) next(verb, dir string) git.Result {
	name := filepath.Base(dir)
	f.calls = append(f.calls, verb+" "+name)
	if q := f.queue[name]; len(q) > 0 {
		res := q[0]
		f.queue[name] = q[1:]
		return res
	}
	return git.Result{Success: true, Output: []string{"Successfully rebased and updated refs/heads/main."}}
}

func (f *fakeGit) fixed(verb, dir string, extra ...string) git.Result {
	name := filepath.Base(dir)
	label := verb + " " + name
	for _, e := range extra {
		label += " " + e
	}
	f.calls = append(f.calls, label)
	if res, ok := f.results[verb+" "+name]; ok {
		return res
	}
	return git.Result{Success: true}
}

func (f *fakeGit) Rebase(_ context.Context, dir string, opts git.RebaseOptions) git.Result {
	f.startOpts = append(f.startOpts, opts)
	return f.next("rebase", dir)
}

func (f *fakeGit) RebaseContinue(_ context.Context, dir string) git.Result {
	return f.next("rebase --continue", dir)
}

func (f *fakeGit) RebaseSkip(_ context.Context, dir string) git.Result {
	return f.next("rebase --skip", dir)
}

func (f *fakeGit) RebaseAbort(_ context.Context, dir string) git.Result {
	return f.fixed("rebase --abort", dir)
}

func (f *fakeGit) Checkout(_ context.Context, dir string, opts git.CheckoutOptions) git.Result {
	return f.fixed("checkout", dir, opts.Ref)
}

func (f *fakeGit) Reset(_ context.Context, dir string, mode git.ResetMode, rev string) git.Result {
	return f.fixed("reset "+string(mode), dir, rev)
}

func (f *fakeGit) StashPush(_ context.Context, dir, _ string) git.Result {
	return f.fixed("stash push", dir)
}

func (f *fakeGit) StashPop(_ context.Context, dir string) git.Result {
	return f.fixed("stash pop", dir)
}

func (f *fakeGit) UnmergedPaths(_ context.Context, dir string) ([]string, error) {
	return f.unmerged[filepath.Base(dir)], nil
}

func (f *fakeGit) callsMatching(prefix string) []string {
	var out []string
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}

type fakeStore struct {
	saved   []*rebase.Spec
	cleared [][]string
	saveErr error
}

func (s *fakeStore) SaveRebase(spec *rebase.Spec) error {
	s.saved = append(s.saved, spec)
	return s.saveErr
}

func (s *fakeStore) ClearRebase(roots []string) error {
	s.cleared = append(s.cleared, roots)
	return nil
}

func (s *fakeStore) last() *rebase.Spec {
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

type fakeDecider struct {
	resolve      bool
	resolveAsked []string
}

func (d *fakeDecider) ConfirmRollback(title, message string) bool { return false }

func (d *fakeDecider) ChooseForceOrSmart(operation string, paths []string) prompt.Choice {
	return prompt.ChoiceCancel
}

func (d *fakeDecider) ResolveConflicts(root string) bool {
	d.resolveAsked = append(d.resolveAsked, filepath.Base(root))
	return d.resolve
}

func (d *fakeDecider) ChooseBranch(candidates []string) string { return "" }

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

func conflictRes(paths ...string) git.Result {
	return git.Result{
		ExitCode: 1,
		Events:   []git.Event{{Kind: git.EventConflict, Paths: paths}},
		ErrorOutput: []string{
			"CONFLICT (content): Merge conflict in " + paths[0],
			"error: could not apply deadbee... change things",
		},
	}
}

func dirtyRes() git.Result {
	return git.Result{
		ExitCode:    1,
		Events:      []git.Event{{Kind: git.EventDirtyTree}},
		ErrorOutput: []string{"error: cannot rebase: You have unstaged changes."},
	}
}

var _ = Describe("Machine", func() {
	var (
		g      *fakeGit
		store  *fakeStore
		decide *fakeDecider
		params rebase.Params
	)

	BeforeEach(func() {
		g = newFakeGit()
		store = &fakeStore{}
		decide = &fakeDecider{}
		params = rebase.Params{Upstream: "origin/main"}
	})

	newMachine := func(repos []*repo.Repository) *rebase.Machine {
		return rebase.New(repos, rebase.Options{
			Git:        g,
			Decide:     decide,
			Store:      store,
			InProgress: func(*repo.Repository) bool { return false },
		})
	}

	It("rebases every repository and clears the spec", func() {
		repos := makeRepos("alpha", "beta")
		summary := newMachine(repos).Run(context.Background(), params)

		Expect(summary.AllSuccessful()).To(BeTrue())
		Expect(g.calls).To(ContainElements("rebase alpha", "rebase beta"))
		Expect(store.cleared).To(HaveLen(1))
		Expect(store.cleared[0]).To(Equal([]string{"/repos/alpha", "/repos/beta"}))
	})

	It("classifies how each repository's rebase ended", func() {
		repos := makeRepos("alpha", "beta", "gamma")
		g.enqueue("alpha", git.Result{Success: true, Output: []string{"Current branch main is up to date."}})
		g.enqueue("beta", git.Result{Success: true, Output: []string{"Fast-forwarded main to origin/main."}})

		summary := newMachine(repos).Run(context.Background(), params)

		Expect(summary.Results[0].Reason).To(Equal("already up to date"))
		Expect(summary.Results[1].Reason).To(Equal("fast-forwarded"))
		Expect(summary.Results[2].Reason).To(Equal("rebased"))
	})

	It("persists the starting snapshot before touching any repository", func() {
		repos := makeRepos("alpha")
		newMachine(repos).Run(context.Background(), params)

		Expect(len(store.saved)).To(BeNumerically(">=", 2))
		first := store.saved[0]
		Expect(first.Statuses["/repos/alpha"]).To(Equal(rebase.StatusPending))
		Expect(first.Initial["/repos/alpha"].Head).To(Equal("baseline"))
	})

	It("persists clones, not the live spec", func() {
		repos := makeRepos("alpha")
		newMachine(repos).Run(context.Background(), params)

		first := store.saved[0]
		last := store.last()
		Expect(first).NotTo(BeIdenticalTo(last))
		Expect(first.Statuses["/repos/alpha"]).To(Equal(rebase.StatusPending))
		Expect(last.Statuses["/repos/alpha"]).To(Equal(rebase.StatusRebased))
	})

	Context("dirty working tree", func() {
		It("stashes once, retries, and restores at the end", func() {
			repos := makeRepos("alpha")
			g.enqueue("alpha", dirtyRes())

			summary := newMachine(repos).Run(context.Background(), params)

			Expect(summary.AllSuccessful()).To(BeTrue())
			Expect(g.callsMatching("stash push alpha")).To(HaveLen(1))
			Expect(g.callsMatching("rebase alpha")).To(HaveLen(2))
			Expect(g.calls[len(g.calls)-1]).To(Equal("stash pop alpha"))
		})

		It("fails the repository when the tree stays dirty after stashing", func() {
			repos := makeRepos("alpha", "beta")
			g.enqueue("alpha", dirtyRes(), dirtyRes())

			summary := newMachine(repos).Run(context.Background(), params)

			Expect(summary.Results[0].Status).To(Equal(engine.StatusFailed))
			Expect(summary.Results[0].Reason).To(ContainSubstring("local changes"))
			Expect(g.callsMatching("stash push alpha")).To(HaveLen(1))
			Expect(summary.Results[1].Status).To(Equal(engine.StatusPending))
			Expect(store.cleared).To(BeEmpty())
		})
	})

	It("fails on untracked files with the offending paths", func() {
		repos := makeRepos("alpha")
		g.enqueue("alpha", git.Result{
			ExitCode: 1,
			Events: []git.Event{{
				Kind:  git.EventUntrackedOverwrite,
				Paths: []string{"build/out.txt"},
			}},
		})

		summary := newMachine(repos).Run(context.Background(), params)

		Expect(summary.Results[0].Status).To(Equal(engine.StatusFailed))
		Expect(summary.Results[0].Reason).To(ContainSubstring("build/out.txt"))
	})

	It("switches to --skip on an empty commit and keeps going", func() {
		repos := makeRepos("alpha")
		g.enqueue("alpha", git.Result{
			ExitCode: 1,
			Events:   []git.Event{{Kind: git.EventNoChanges}},
			Output:   []string{"No changes - did you forget to use 'git add'?"},
		})

		summary := newMachine(repos).Run(context.Background(), params)

		Expect(summary.AllSuccessful()).To(BeTrue())
		Expect(g.calls).To(ContainElement("rebase --skip alpha"))
	})

	Context("conflicts", func() {
		It("continues after the user resolves everything", func() {
			repos := makeRepos("alpha")
			g.enqueue("alpha", conflictRes("main.go"))
			g.unmerged["alpha"] = []string{"main.go"}
			decide.resolve = true

			summary := newMachine(repos).Run(context.Background(), params)

			Expect(summary.AllSuccessful()).To(BeTrue())
			Expect(decide.resolveAsked).To(Equal([]string{"alpha"}))
			Expect(g.calls).To(ContainElement("rebase --continue alpha"))
		})

		It("suspends when the user declines and leaves later repositories pending", func() {
			repos := makeRepos("alpha", "beta", "gamma")
			g.enqueue("beta", conflictRes("main.go"))
			g.unmerged["beta"] = []string{"main.go"}
			decide.resolve = false

			summary := newMachine(repos).Run(context.Background(), params)

			Expect(summary.Results[0].Status).To(Equal(engine.StatusSuccessful))
			Expect(summary.Results[1].Status).To(Equal(engine.StatusSuspended))
			Expect(summary.Results[2].Status).To(Equal(engine.StatusPending))

			spec := store.last()
			Expect(spec.Ongoing).To(Equal("/repos/beta"))
			Expect(spec.Statuses["/repos/alpha"]).To(Equal(rebase.StatusRebased))
			Expect(spec.Statuses["/repos/beta"]).To(Equal(rebase.StatusSuspended))
			Expect(spec.Statuses["/repos/gamma"]).To(Equal(rebase.StatusPending))
			Expect(store.cleared).To(BeEmpty())
		})

		It("treats a conflict with nothing to merge as a plain failure", func() {
			repos := makeRepos("alpha")
			g.enqueue("alpha", conflictRes("main.go"))
			g.unmerged["alpha"] = nil

			summary := newMachine(repos).Run(context.Background(), params)

			Expect(summary.Results[0].Status).To(Equal(engine.StatusFailed))
			Expect(decide.resolveAsked).To(BeEmpty())
		})
	})

	Context("resume", func() {
		suspendOn := func(repos []*repo.Repository, repoName string) *rebase.Spec {
			g.enqueue(repoName, conflictRes("main.go"))
			g.unmerged[repoName] = []string{"main.go"}
			decide.resolve = false
			newMachine(repos).Run(context.Background(), params)
			spec := store.last()
			Expect(spec.Statuses["/repos/"+repoName]).To(Equal(rebase.StatusSuspended))
			return spec.Clone()
		}

		It("continues the suspended repository and finishes the run", func() {
			repos := makeRepos("alpha", "beta", "gamma")
			spec := suspendOn(repos, "beta")

			// Fresh collaborators, as after a process restart.
			g = newFakeGit()
			store = &fakeStore{}
			summary, err := newMachine(repos).Resume(context.Background(), spec, rebase.ResumeContinue)

			Expect(err).NotTo(HaveOccurred())
			Expect(summary.AllSuccessful()).To(BeTrue())
			Expect(g.calls[0]).To(Equal("rebase --continue beta"))
			Expect(g.callsMatching("rebase alpha")).To(BeEmpty())
			Expect(g.calls).To(ContainElement("rebase gamma"))
			Expect(store.cleared).To(HaveLen(1))
		})

		It("keeps the earlier classification for repositories done before the suspend", func() {
			repos := makeRepos("alpha", "beta")
			g.enqueue("alpha", git.Result{Success: true, Output: []string{"Current branch main is up to date."}})
			spec := suspendOn(repos, "beta")

			summary, err := newMachine(repos).Resume(context.Background(), spec, rebase.ResumeContinue)

			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Results[0].Reason).To(Equal("already up to date"))
		})

		It("skips the conflicted commit when asked", func() {
			repos := makeRepos("alpha", "beta")
			spec := suspendOn(repos, "beta")

			g = newFakeGit()
			summary, err := newMachine(repos).Resume(context.Background(), spec, rebase.ResumeSkip)

			Expect(err).NotTo(HaveOccurred())
			Expect(summary.AllSuccessful()).To(BeTrue())
			Expect(g.calls[0]).To(Equal("rebase --skip beta"))
		})

		It("restarts a failed repository from the beginning", func() {
			repos := makeRepos("alpha")
			g.enqueue("alpha", git.Result{ExitCode: 128, ErrorOutput: []string{"fatal: invalid upstream"}})
			newMachine(repos).Run(context.Background(), params)
			spec := store.last().Clone()
			Expect(spec.Statuses["/repos/alpha"]).To(Equal(rebase.StatusFailed))

			g = newFakeGit()
			summary, err := newMachine(repos).Resume(context.Background(), spec, rebase.ResumeContinue)

			Expect(err).NotTo(HaveOccurred())
			Expect(summary.AllSuccessful()).To(BeTrue())
			Expect(g.calls[0]).To(Equal("rebase alpha"))
		})

		It("picks up a native rebase left behind by a dead run", func() {
			repos := makeRepos("alpha")
			spec := rebase.NewSpec(params, repos)
			spec.Ongoing = "/repos/alpha"

			m := rebase.New(repos, rebase.Options{
				Git:        g,
				Decide:     decide,
				Store:      store,
				InProgress: func(*repo.Repository) bool { return true },
			})
			summary, err := m.Resume(context.Background(), spec, rebase.ResumeContinue)

			Expect(err).NotTo(HaveOccurred())
			Expect(summary.AllSuccessful()).To(BeTrue())
			Expect(g.calls[0]).To(Equal("rebase --continue alpha"))
		})

		It("rejects a spec for a different repository set", func() {
			repos := makeRepos("alpha", "beta")
			spec := rebase.NewSpec(params, makeRepos("alpha"))

			_, err := newMachine(repos).Resume(context.Background(), spec, rebase.ResumeContinue)

			Expect(err).To(HaveOccurred())
		})
	})

	Context("abort", func() {
		It("aborts the native rebase, restores earlier repositories, and restores stashes last", func() {
			repos := makeRepos("alpha", "beta")
			g.enqueue("alpha", dirtyRes())
			g.enqueue("beta", conflictRes("main.go"))
			g.unmerged["beta"] = []string{"main.go"}
			decide.resolve = false
			newMachine(repos).Run(context.Background(), params)
			spec := store.last().Clone()
			Expect(spec.Stashed).To(Equal([]string{"/repos/alpha"}))

			g.calls = nil
			m := rebase.New(repos, rebase.Options{
				Git:        g,
				Decide:     decide,
				Store:      store,
				InProgress: func(r *repo.Repository) bool { return r.Root == "/repos/beta" },
			})
			err := m.Abort(context.Background(), spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(g.calls[0]).To(Equal("rebase --abort beta"))
			Expect(g.calls).To(ContainElement("reset --keep alpha baseline"))
			Expect(g.calls[len(g.calls)-1]).To(Equal("stash pop alpha"))
			Expect(store.cleared).To(HaveLen(1))
		})

		It("checks out the original branch when the rebase moved off it", func() {
			repos := makeRepos("alpha")
			newMachine(repos).Run(context.Background(), params)
			spec := store.last().Clone()
			spec.Initial["/repos/alpha"] = rebase.Position{Branch: "feature", Head: "feat-head"}

			g.calls = nil
			err := newMachine(repos).Abort(context.Background(), spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(g.calls).To(ContainElement("checkout alpha feature"))
			Expect(g.calls).To(ContainElement("reset --keep alpha feat-head"))
		})

		It("does not reset repositories the run never reached", func() {
			repos := makeRepos("alpha", "beta")
			g.enqueue("alpha", conflictRes("main.go"))
			g.unmerged["alpha"] = []string{"main.go"}
			decide.resolve = false
			newMachine(repos).Run(context.Background(), params)
			spec := store.last().Clone()

			g.calls = nil
			err := newMachine(repos).Abort(context.Background(), spec)

			Expect(err).NotTo(HaveOccurred())
			Expect(g.callsMatching("reset")).To(BeEmpty())
		})
	})

	It("threads the sequence-editor environment into rebase starts", func() {
		repos := makeRepos("alpha")
		m := rebase.New(repos, rebase.Options{
			Git:        g,
			Decide:     decide,
			Store:      store,
			RebaseEnv:  []string{"GIT_SEQUENCE_EDITOR=githerd sequence-editor"},
			InProgress: func(*repo.Repository) bool { return false },
		})

		m.Run(context.Background(), rebase.Params{Upstream: "origin/main", Interactive: true})

		Expect(g.startOpts).To(HaveLen(1))
		Expect(g.startOpts[0].Interactive).To(BeTrue())
		Expect(g.startOpts[0].Env).To(ContainElement("GIT_SEQUENCE_EDITOR=githerd sequence-editor"))
	})
})
