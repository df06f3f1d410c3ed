package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/engine"
)

var (
	branchCreateAt    string
	branchDeleteForce bool
)

func init() {
	branchCreateCmd.Flags().StringVar(&branchCreateAt, "at", "", "revision to start the branch at (default HEAD)")
	branchDeleteCmd.Flags().BoolVarP(&branchDeleteForce, "force", "f", false, "delete even when the branch is not merged")

	branchCmd.AddCommand(branchCreateCmd)
	branchCmd.AddCommand(branchDeleteCmd)
	branchCmd.AddCommand(branchRenameCmd)
	branchCmd.AddCommand(branchRecentCmd)
	rootCmd.AddCommand(branchCmd)
}

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Create, delete or rename a branch in every repository",
}

var branchCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a branch in every repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.CreateBranchOp{
			Branch:     args[0],
			StartPoint: branchCreateAt,
		})
	},
}

var branchDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a branch in every repository",
	Long: `Deletes the branch wherever it exists. Repositories without the branch are
skipped. Without --force an unmerged branch halts the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.DeleteBranchOp{
			Branch: args[0],
			Force:  branchDeleteForce,
		})
	},
}

var branchRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a branch in every repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.RenameBranchOp{
			From: args[0],
			To:   args[1],
		})
	},
}

var branchRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently used branches, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		for _, name := range s.Store.RecentBranches(s.Roots()).List() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}
