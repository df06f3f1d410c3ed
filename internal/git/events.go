package git

// EventKind names a situation recognized in git output.
type EventKind string

const (
	// EventConflict means the command stopped on merge conflicts.
	EventConflict EventKind = "conflict"

	// EventUntrackedOverwrite means untracked working tree files block the
	// command. Paths carries the reported files.
	EventUntrackedOverwrite EventKind = "untracked-overwrite"

	// EventLocalChangesOverwrite means tracked local modifications block the
	// command. Paths carries the reported files.
	EventLocalChangesOverwrite EventKind = "local-changes-overwrite"

	// EventUnmergedFiles means unresolved files from an earlier operation
	// block the command.
	EventUnmergedFiles EventKind = "unmerged-files"

	// EventNotFullyMerged means a branch deletion was refused because the
	// branch is not merged. Ref carries the base branch when git named one.
	EventNotFullyMerged EventKind = "not-fully-merged"

	// EventNoChanges means the current step has nothing left to apply, for
	// example a cherry-pick whose patch is already present.
	EventNoChanges EventKind = "no-changes"

	// EventDirtyTree means the command refused to start on a working tree
	// with uncommitted changes.
	EventDirtyTree EventKind = "dirty-tree"

	// EventOperationInProgress means another sequencing operation is already
	// underway in the repository.
	EventOperationInProgress EventKind = "operation-in-progress"

	// EventAuthFailed means the remote rejected the supplied credentials.
	EventAuthFailed EventKind = "auth-failed"
)

// Event is one recognized situation. Kind is always set; Paths, Ref and Line
// are filled when the underlying message carries them.
type Event struct {
	Kind  EventKind
	Paths []string
	Ref   string
	Line  string
}

// A Detector inspects the complete captured output of a finished command and
// reports the situations it recognizes. Detectors are pure functions of the
// line slice: same lines in, same events out.
type Detector func(lines []string) []Event
