package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/bridge"
)

// The bridge commands are how git calls back into the running githerd
// process. They are hidden, git is their only caller.
func init() {
	rootCmd.AddCommand(askpassCmd)
	rootCmd.AddCommand(sequenceEditorCmd)
}

var askpassCmd = &cobra.Command{
	Use:    "askpass <prompt>",
	Short:  "Relay a git credential prompt to the owning githerd process",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bridge.RunAskpass(strings.Join(args, " "), cmd.OutOrStdout())
	},
}

var sequenceEditorCmd = &cobra.Command{
	Use:    "sequence-editor <todo-file>",
	Short:  "Apply the planned todo rewrite to a rebase todo file",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bridge.RunSequenceEditor(args[0])
	},
}
