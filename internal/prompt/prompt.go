// Package prompt collects the decision points surfaced to the user while a
// multi-repository operation is running.
package prompt

// Choice answers the force-or-smart question for blocked operations.
type Choice string

const (
	// ChoiceSmart shelves the blocking changes, retries, and restores them.
	ChoiceSmart Choice = "smart"

	// ChoiceForce discards the blocking changes and retries.
	ChoiceForce Choice = "force"

	// ChoiceCancel gives up on the repository.
	ChoiceCancel Choice = "cancel"
)

// Decider answers the questions an operation cannot settle on its own. Every
// method blocks until the user, or a scripted policy, decides.
type Decider interface {
	// ConfirmRollback asks whether repositories that already completed the
	// operation should be rolled back after a later repository failed.
	ConfirmRollback(title, message string) bool

	// ChooseForceOrSmart asks how to treat local changes blocking the
	// operation in one repository.
	ChooseForceOrSmart(operation string, paths []string) Choice

	// ResolveConflicts hands control to the user for conflict resolution in
	// the given repository and reports whether every conflict was resolved.
	ResolveConflicts(root string) bool

	// ChooseBranch picks one branch name from candidates. The empty string
	// cancels.
	ChooseBranch(candidates []string) string
}
