package bridge

import "os"

// EnvRebasePlan points the sequence editor at the plan file for the current
// interactive rebase.
const EnvRebasePlan = "GITHERD_REBASE_PLAN"

// SequenceEditorEnv returns the environment entries that make git hand its
// rebase todo list to this binary. self is the githerd executable. planPath
// may be empty, in which case the editor leaves the list as git wrote it.
func SequenceEditorEnv(self, planPath string) []string {
	env := []string{
		"GIT_SEQUENCE_EDITOR=" + shellQuote(self) + " sequence-editor",
	}
	if planPath != "" {
		env = append(env, EnvRebasePlan+"="+planPath)
	}
	return env
}

// RunSequenceEditor is the subprocess side of the rebase editor bridge. git
// invokes it with the path of the todo file; the plan named by the
// environment is applied to it in place. Without a plan, or when the list
// is a noop, the file is left untouched.
func RunSequenceEditor(todoPath string) error {
	planPath := os.Getenv(EnvRebasePlan)
	if planPath == "" {
		return nil
	}
	todo, err := ReadTodoFile(todoPath)
	if err != nil {
		return err
	}
	if todo.Empty {
		return nil
	}
	plan, err := ReadTodoFile(planPath)
	if err != nil {
		return err
	}
	entries, err := ApplyPlan(todo.Entries, plan.Entries)
	if err != nil {
		return err
	}
	return WriteTodoFile(todoPath, entries)
}
