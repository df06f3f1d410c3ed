// Package rebase drives one rebase across several repositories and keeps the
// run resumable. The persisted Spec survives process restarts, so a rebase
// suspended on conflicts can be continued, skipped past, or aborted later.
package rebase

import (
	"fmt"
	"time"

	"github.com/githerd/githerd/internal/repo"
)

// Params are the arguments the rebase was started with. They are persisted
// so a resume replays the same invocation.
type Params struct {
	// Upstream is the first positional rebase argument.
	Upstream string `json:"upstream"`

	// Onto transplants the commits onto this ref instead of Upstream.
	Onto string `json:"onto,omitempty"`

	// Branch is rebased instead of the current branch when set.
	Branch string `json:"branch,omitempty"`

	// Interactive runs the rebase through the sequence editor bridge.
	Interactive bool `json:"interactive,omitempty"`

	// RebaseMerges recreates merge commits.
	RebaseMerges bool `json:"rebase_merges,omitempty"`
}

// Describe names the operation for summaries and logs.
func (p Params) Describe() string {
	target := p.Upstream
	if p.Onto != "" {
		target = p.Onto
	}
	if p.Branch != "" {
		return fmt.Sprintf("rebase %s onto %s", p.Branch, target)
	}
	return fmt.Sprintf("rebase onto %s", target)
}

// Status is one repository's progress through the rebase. The three success
// values record how the rebase ended there.
type Status string

const (
	StatusPending Status = "pending"

	// StatusRebased means commits were replayed.
	StatusRebased Status = "rebased"

	// StatusUpToDate means the branch already contained the upstream.
	StatusUpToDate Status = "up-to-date"

	// StatusFastForwarded means the branch was moved without replaying.
	StatusFastForwarded Status = "fast-forwarded"

	// StatusSuspended means the rebase stopped on conflicts and the native
	// rebase is still in progress in the repository.
	StatusSuspended Status = "suspended"

	StatusFailed Status = "failed"
)

// Succeeded reports whether the status is one of the success forms.
func (s Status) Succeeded() bool {
	return s == StatusRebased || s == StatusUpToDate || s == StatusFastForwarded
}

// Position is where a repository stood before the rebase.
type Position struct {
	Branch string `json:"branch,omitempty"`
	Head   string `json:"head"`
}

// Spec is the persisted snapshot of one multi-repository rebase. The driving
// machine is its only writer; everyone else reads a loaded copy and must
// treat it as immutable.
type Spec struct {
	Params Params `json:"params"`

	// Roots lists the repositories in processing order.
	Roots []string `json:"roots"`

	// Statuses is each repository's last recorded state.
	Statuses map[string]Status `json:"statuses"`

	// Reasons annotates failed or suspended repositories.
	Reasons map[string]string `json:"reasons,omitempty"`

	// Initial records where each repository stood before the run, for abort.
	Initial map[string]Position `json:"initial"`

	// Ongoing is the repository the run halted in, empty while none.
	Ongoing string `json:"ongoing,omitempty"`

	// Stashed lists repositories whose local changes were shelved and not
	// yet restored.
	Stashed []string `json:"stashed,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

// NewSpec snapshots the starting state for a fresh run over the given
// repositories, which must already be in processing order.
func NewSpec(params Params, repos []*repo.Repository) *Spec {
	s := &Spec{
		Params:    params,
		Statuses:  make(map[string]Status, len(repos)),
		Initial:   make(map[string]Position, len(repos)),
		StartedAt: time.Now().UTC(),
	}
	for _, r := range repos {
		s.Roots = append(s.Roots, r.Root)
		s.Statuses[r.Root] = StatusPending
		s.Initial[r.Root] = Position{Branch: r.Branch, Head: r.Head}
	}
	return s
}

// Clone returns a deep copy. The machine persists clones so loaded snapshots
// never alias the live spec.
func (s *Spec) Clone() *Spec {
	out := &Spec{
		Params:    s.Params,
		Roots:     append([]string(nil), s.Roots...),
		Statuses:  make(map[string]Status, len(s.Statuses)),
		Initial:   make(map[string]Position, len(s.Initial)),
		Ongoing:   s.Ongoing,
		Stashed:   append([]string(nil), s.Stashed...),
		StartedAt: s.StartedAt,
	}
	for k, v := range s.Statuses {
		out.Statuses[k] = v
	}
	for k, v := range s.Initial {
		out.Initial[k] = v
	}
	if s.Reasons != nil {
		out.Reasons = make(map[string]string, len(s.Reasons))
		for k, v := range s.Reasons {
			out.Reasons[k] = v
		}
	}
	return out
}

// setStatus records a repository transition.
func (s *Spec) setStatus(root string, st Status, reason string) {
	s.Statuses[root] = st
	if reason == "" {
		delete(s.Reasons, root)
		return
	}
	if s.Reasons == nil {
		s.Reasons = make(map[string]string)
	}
	s.Reasons[root] = reason
}

// markStashed remembers that a repository's local changes are shelved.
func (s *Spec) markStashed(root string) {
	for _, r := range s.Stashed {
		if r == root {
			return
		}
	}
	s.Stashed = append(s.Stashed, root)
}

// Finished reports whether every repository reached a success status.
func (s *Spec) Finished() bool {
	for _, root := range s.Roots {
		if !s.Statuses[root].Succeeded() {
			return false
		}
	}
	return true
}
