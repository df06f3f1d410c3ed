package rebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/githerd/githerd/internal/engine"
	"github.com/githerd/githerd/internal/git"
	"github.com/githerd/githerd/internal/prompt"
	"github.com/githerd/githerd/internal/repo"
)

// Git is the slice of the command facade the machine consumes. *git.Client
// satisfies it.
type Git interface {
	Rebase(ctx context.Context, dir string, opts git.RebaseOptions) git.Result
	RebaseContinue(ctx context.Context, dir string) git.Result
	RebaseSkip(ctx context.Context, dir string) git.Result
	RebaseAbort(ctx context.Context, dir string) git.Result
	Checkout(ctx context.Context, dir string, opts git.CheckoutOptions) git.Result
	Reset(ctx context.Context, dir string, mode git.ResetMode, rev string) git.Result
	StashPush(ctx context.Context, dir, message string) git.Result
	StashPop(ctx context.Context, dir string) git.Result
	UnmergedPaths(ctx context.Context, dir string) ([]string, error)
}

// Store persists the live spec between repository transitions.
type Store interface {
	SaveRebase(spec *Spec) error
	ClearRebase(roots []string) error
}

// ResumeMode picks the sub-command a resume starts the halted repository
// with.
type ResumeMode string

const (
	ResumeContinue ResumeMode = "continue"
	ResumeSkip     ResumeMode = "skip"
)

// Options configures a Machine.
type Options struct {
	Git    Git
	Decide prompt.Decider
	Store  Store
	Log    *slog.Logger

	// RebaseEnv is extra environment for each rebase start, carrying the
	// sequence-editor bridge for interactive runs.
	RebaseEnv []string

	// InProgress overrides the native-rebase probe. Nil uses the repository's
	// own git-directory check.
	InProgress func(r *repo.Repository) bool
}

// Machine drives one rebase across repositories and keeps the persisted spec
// current after every transition, so the run survives suspension and process
// restarts.
type Machine struct {
	repos      []*repo.Repository
	g          Git
	decide     prompt.Decider
	store      Store
	log        *slog.Logger
	env        []string
	inProgress func(r *repo.Repository) bool
}

// New returns a Machine over the given repositories, kept in deterministic
// order so fresh runs and resumes traverse identically.
func New(repos []*repo.Repository, opts Options) *Machine {
	sorted := append([]*repo.Repository(nil), repos...)
	repo.Sort(sorted)
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	probe := opts.InProgress
	if probe == nil {
		probe = func(r *repo.Repository) bool { return r.RebaseInProgress() }
	}
	return &Machine{
		repos:      sorted,
		g:          opts.Git,
		decide:     opts.Decide,
		store:      opts.Store,
		log:        log.With("component", "rebase"),
		env:        opts.RebaseEnv,
		inProgress: probe,
	}
}

// Run starts a fresh rebase across all repositories.
func (m *Machine) Run(ctx context.Context, params Params) engine.Summary {
	spec := NewSpec(params, m.repos)
	m.persist(spec)
	return m.drive(ctx, spec, stepStart)
}

// Resume picks a halted rebase back up from its persisted spec. The
// suspended repository restarts with --continue or --skip per mode; a
// repository that failed outright restarts from the beginning.
func (m *Machine) Resume(ctx context.Context, spec *Spec, mode ResumeMode) (engine.Summary, error) {
	if err := m.matches(spec); err != nil {
		return engine.Summary{}, err
	}
	first := stepContinue
	if mode == ResumeSkip {
		first = stepSkip
	}
	return m.drive(ctx, spec, first), nil
}

// Abort unwinds a halted rebase: native rebase --abort where one is still in
// progress, then every repository that succeeded in this run is returned to
// its pre-rebase branch and revision, stashes are restored, and the spec is
// cleared.
func (m *Machine) Abort(ctx context.Context, spec *Spec) error {
	if err := m.matches(spec); err != nil {
		return err
	}
	var errs []error

	if spec.Ongoing != "" {
		if r := m.repoByRoot(spec.Ongoing); r != nil && m.inProgress(r) {
			m.log.Info("aborting native rebase", "repo", r.Name())
			if res := m.g.RebaseAbort(ctx, r.Root); !res.Success {
				errs = append(errs, fmt.Errorf("abort rebase in %s: %s", r.Name(), res.ErrorText()))
			}
		}
	}

	for i := len(m.repos) - 1; i >= 0; i-- {
		r := m.repos[i]
		if !spec.Statuses[r.Root].Succeeded() {
			continue
		}
		if err := m.restoreInitial(ctx, r, spec.Initial[r.Root]); err != nil {
			errs = append(errs, err)
		}
	}

	m.restoreStashes(ctx, spec)
	if err := m.store.ClearRebase(spec.Roots); err != nil {
		errs = append(errs, fmt.Errorf("clear rebase state: %w", err))
	}
	return errors.Join(errs...)
}

type step int

const (
	stepStart step = iota
	stepContinue
	stepSkip
)

func (m *Machine) drive(ctx context.Context, spec *Spec, first step) engine.Summary {
	summary := engine.Summary{Operation: spec.Params.Describe()}
	halted := false

	for _, r := range m.repos {
		st := spec.Statuses[r.Root]
		if st.Succeeded() {
			summary.Results = append(summary.Results, engine.RepoResult{
				Root: r.Root, Status: engine.StatusSuccessful, Reason: successReason(st),
			})
			continue
		}
		if halted {
			summary.Results = append(summary.Results, engine.RepoResult{
				Root: r.Root, Status: engine.StatusPending, Reason: "not started",
			})
			continue
		}

		stepHere := stepStart
		if r.Root == spec.Ongoing {
			switch {
			case st == StatusSuspended:
				stepHere = first
			case m.inProgress(r):
				// An earlier attempt died mid-rebase. Pick it up rather than
				// start a second one.
				stepHere = stepContinue
			}
		}

		spec.Ongoing = r.Root
		m.persist(spec)

		status, reason := m.runOne(ctx, spec, r, stepHere)
		if status.Succeeded() {
			spec.Ongoing = ""
			if err := r.Reload(ctx); err != nil {
				m.log.Warn("reload after rebase failed", "repo", r.Name(), "error", err)
			}
		} else {
			halted = true
			m.log.Error("rebase halted",
				"repo", r.Name(), "status", string(status), "reason", reason)
		}
		spec.setStatus(r.Root, status, reason)
		m.persist(spec)

		result := engine.RepoResult{Root: r.Root, Status: engineStatus(status), Reason: reason}
		if status.Succeeded() {
			result.Reason = successReason(status)
		}
		summary.Results = append(summary.Results, result)
	}

	if !halted {
		m.restoreStashes(ctx, spec)
		if err := m.store.ClearRebase(spec.Roots); err != nil {
			m.log.Warn("clearing rebase state failed", "error", err)
		}
	}
	return summary
}

// runOne executes rebase sub-commands in one repository until it reaches a
// terminal state. Outcomes are examined in fixed priority.
func (m *Machine) runOne(ctx context.Context, spec *Spec, r *repo.Repository, st step) (Status, string) {
	triedStash := false
	for {
		if ctx.Err() != nil {
			return StatusFailed, "canceled"
		}

		res := m.invoke(ctx, spec, r, st)
		if res.Success {
			return classify(res), ""
		}

		if res.Has(git.EventDirtyTree) || res.Has(git.EventLocalChangesOverwrite) {
			if triedStash {
				return StatusFailed, "local changes still block the rebase: " + res.ErrorText()
			}
			triedStash = true
			if reason, ok := m.shelve(ctx, spec, r); !ok {
				return StatusFailed, reason
			}
			continue
		}

		if ev, ok := res.First(git.EventUntrackedOverwrite); ok {
			return StatusFailed, "untracked files would be overwritten: " + pathSummary(ev.Paths)
		}

		if res.Has(git.EventNoChanges) {
			m.log.Info("empty commit, skipping", "repo", r.Name())
			st = stepSkip
			continue
		}

		if res.Has(git.EventConflict) || res.Has(git.EventUnmergedFiles) {
			unmerged, err := m.g.UnmergedPaths(ctx, r.Root)
			if err == nil && len(unmerged) == 0 {
				// The conflict pattern matched but nothing needs merging.
				return StatusFailed, res.ErrorText()
			}
			if m.decide != nil && m.decide.ResolveConflicts(r.Root) {
				st = stepContinue
				continue
			}
			return StatusSuspended, "conflicts must be resolved; continue, skip, or abort the rebase"
		}

		return StatusFailed, res.ErrorText()
	}
}

func (m *Machine) invoke(ctx context.Context, spec *Spec, r *repo.Repository, st step) git.Result {
	switch st {
	case stepContinue:
		return m.g.RebaseContinue(ctx, r.Root)
	case stepSkip:
		return m.g.RebaseSkip(ctx, r.Root)
	default:
		p := spec.Params
		return m.g.Rebase(ctx, r.Root, git.RebaseOptions{
			Upstream:     p.Upstream,
			Onto:         p.Onto,
			Branch:       p.Branch,
			Interactive:  p.Interactive,
			RebaseMerges: p.RebaseMerges,
			Env:          m.env,
		})
	}
}

// shelve stashes the blocking local changes and records the stash in the
// spec so it survives until the run finishes or aborts.
func (m *Machine) shelve(ctx context.Context, spec *Spec, r *repo.Repository) (string, bool) {
	m.log.Info("stashing local changes", "repo", r.Name())
	res := m.g.StashPush(ctx, r.Root, "githerd: before "+spec.Params.Describe())
	if !res.Success {
		return "stashing local changes failed: " + res.ErrorText(), false
	}
	if !savedNothing(res.Output) {
		spec.markStashed(r.Root)
		m.persist(spec)
	}
	return "", true
}

// restoreStashes pops every stash the run made. Failures are logged and the
// stash entry stays in git for manual recovery.
func (m *Machine) restoreStashes(ctx context.Context, spec *Spec) {
	for _, root := range spec.Stashed {
		name := root
		if r := m.repoByRoot(root); r != nil {
			name = r.Name()
		}
		if res := m.g.StashPop(ctx, root); !res.Success {
			m.log.Error("restoring stashed changes failed, the stash is kept",
				"repo", name, "error", res.ErrorText())
			continue
		}
		m.log.Info("restored stashed changes", "repo", name)
	}
	spec.Stashed = nil
}

// restoreInitial returns a repository to its pre-rebase branch and revision.
func (m *Machine) restoreInitial(ctx context.Context, r *repo.Repository, initial Position) error {
	if initial.Head == "" {
		return nil
	}
	if err := r.Reload(ctx); err != nil {
		m.log.Warn("reload before restore failed", "repo", r.Name(), "error", err)
	}
	if initial.Branch != "" && r.Branch != initial.Branch {
		if res := m.g.Checkout(ctx, r.Root, git.CheckoutOptions{Ref: initial.Branch}); !res.Success {
			return fmt.Errorf("checkout %s in %s: %s", initial.Branch, r.Name(), res.ErrorText())
		}
	}
	if res := m.g.Reset(ctx, r.Root, git.ResetKeep, initial.Head); !res.Success {
		return fmt.Errorf("reset --keep %s in %s: %s", initial.Head, r.Name(), res.ErrorText())
	}
	if err := r.Reload(ctx); err != nil {
		m.log.Warn("reload after restore failed", "repo", r.Name(), "error", err)
	}
	return nil
}

// persist writes a snapshot of the spec. The live spec is never handed out.
func (m *Machine) persist(spec *Spec) {
	if err := m.store.SaveRebase(spec.Clone()); err != nil {
		m.log.Error("persisting rebase state failed", "error", err)
	}
}

// matches verifies the spec covers exactly this machine's repositories.
func (m *Machine) matches(spec *Spec) error {
	if len(spec.Roots) != len(m.repos) {
		return fmt.Errorf("rebase state covers %d repositories, have %d", len(spec.Roots), len(m.repos))
	}
	for _, r := range m.repos {
		if _, ok := spec.Statuses[r.Root]; !ok {
			return fmt.Errorf("rebase state does not cover %s", r.Root)
		}
	}
	return nil
}

func (m *Machine) repoByRoot(root string) *repo.Repository {
	for _, r := range m.repos {
		if r.Root == root {
			return r
		}
	}
	return nil
}

func classify(res git.Result) Status {
	for _, line := range res.Output {
		if strings.Contains(line, "is up to date") {
			return StatusUpToDate
		}
		if strings.Contains(line, "Fast-forwarded") {
			return StatusFastForwarded
		}
	}
	return StatusRebased
}

func successReason(s Status) string {
	switch s {
	case StatusUpToDate:
		return "already up to date"
	case StatusFastForwarded:
		return "fast-forwarded"
	default:
		return "rebased"
	}
}

func engineStatus(s Status) engine.Status {
	switch {
	case s.Succeeded():
		return engine.StatusSuccessful
	case s == StatusSuspended:
		return engine.StatusSuspended
	case s == StatusFailed:
		return engine.StatusFailed
	default:
		return engine.StatusPending
	}
}

func savedNothing(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, "No local changes to save") {
			return true
		}
	}
	return false
}

func pathSummary(paths []string) string {
	const max = 5
	if len(paths) == 0 {
		return "(unknown files)"
	}
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(paths[:max], ", "), len(paths)-max)
}
