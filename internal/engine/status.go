package engine

// Status describes one repository's progress through an operation.
type Status string

const (
	// StatusPending means the operation has not reached the repository,
	// usually because an earlier repository failed.
	StatusPending Status = "pending"

	// StatusSuccessful means the operation completed in the repository.
	StatusSuccessful Status = "successful"

	// StatusSkipped means the operation did not apply to the repository and
	// processing moved on.
	StatusSkipped Status = "skipped"

	// StatusSuspended means the operation stopped in the repository waiting
	// for the user, and can be resumed.
	StatusSuspended Status = "suspended"

	// StatusFailed means the operation failed in the repository.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status ends processing for later
// repositories.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusSuspended
}

// RepoResult is the outcome of the operation in one repository.
type RepoResult struct {
	Root   string `json:"root"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Summary is the outcome of one engine run across all repositories, in
// traversal order.
type Summary struct {
	Operation      string       `json:"operation"`
	Results        []RepoResult `json:"results"`
	RolledBack     bool         `json:"rolled_back,omitempty"`
	RollbackErrors []string     `json:"rollback_errors,omitempty"`
}

// AllSuccessful reports whether every repository completed, counting skips as
// completion.
func (s Summary) AllSuccessful() bool {
	for _, r := range s.Results {
		if r.Status != StatusSuccessful && r.Status != StatusSkipped {
			return false
		}
	}
	return true
}

// Failed returns the repository that halted the run, if any.
func (s Summary) Failed() (RepoResult, bool) {
	for _, r := range s.Results {
		if r.Status.Terminal() {
			return r, true
		}
	}
	return RepoResult{}, false
}

// Result returns the outcome recorded for a root.
func (s Summary) Result(root string) (RepoResult, bool) {
	for _, r := range s.Results {
		if r.Root == root {
			return r, true
		}
	}
	return RepoResult{}, false
}
