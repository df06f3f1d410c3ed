package cli

import (
	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/engine"
)

var cherryPickRecord bool

func init() {
	cherryPickCmd.Flags().BoolVarP(&cherryPickRecord, "record", "x", true, "append the picked-from line to each commit message")
	rootCmd.AddCommand(cherryPickCmd)
}

var cherryPickCmd = &cobra.Command{
	Use:     "cherry-pick <commit>...",
	Aliases: []string{"pick"},
	Short:   "Apply commits to every repository",
	Long: `Applies the commits in order to every repository. A commit whose changes
are already present is noted as already picked and the batch continues.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.CherryPickOp{
			Commits: args,
			Record:  cherryPickRecord,
		})
	},
}
