package state

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const recentLimit = 10

// RecentBranches remembers the branches the user recently operated on
// across one repository set, newest first.
type RecentBranches struct {
	store *Store
	path  string
}

// RecentBranches returns the recent-branch list for a root set.
func (s *Store) RecentBranches(roots []string) *RecentBranches {
	return &RecentBranches{
		store: s,
		path:  filepath.Join(s.dir, "recent-"+rootSetKey(roots)+".json"),
	}
}

// RecordBranch moves a branch to the front of the list. Failures are only
// logged, a broken recent list never fails the operation that produced it.
func (r *RecentBranches) RecordBranch(name string) {
	if name == "" {
		return
	}
	out := make([]string, 0, recentLimit)
	out = append(out, name)
	for _, n := range r.List() {
		if n != name && len(out) < recentLimit {
			out = append(out, n)
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err == nil {
		err = r.store.writeAtomic(r.path, data)
	}
	if err != nil {
		r.store.log.Warn("recording recent branch failed", "branch", name, "error", err)
	}
}

// List returns the recorded branches, most recent first.
func (r *RecentBranches) List() []string {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil
	}
	return names
}
