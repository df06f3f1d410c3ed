package prompt

// Auto is a non-interactive policy with fixed answers, used when the terminal
// is not a TTY or the user passed a no-questions flag. Conflicts are never
// reported as resolved, since nobody is there to resolve them.
type Auto struct {
	// Rollback answers every rollback confirmation.
	Rollback bool

	// LocalChanges answers the force-or-smart question.
	LocalChanges Choice

	// Branch answers branch selections.
	Branch string
}

func (a Auto) ConfirmRollback(string, string) bool { return a.Rollback }

func (a Auto) ChooseForceOrSmart(string, []string) Choice {
	if a.LocalChanges == "" {
		return ChoiceCancel
	}
	return a.LocalChanges
}

func (a Auto) ResolveConflicts(string) bool { return false }

func (a Auto) ChooseBranch([]string) string { return a.Branch }
