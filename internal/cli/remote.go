package cli

import (
	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/engine"
)

var (
	pushRemote      string
	pushRefSpec     string
	pushSetUpstream bool
	pushForceLease  bool

	fetchRemote string
	fetchAll    bool
	fetchPrune  bool

	pullRemote string
	pullBranch string
	pullRebase bool
)

func init() {
	pushCmd.Flags().StringVar(&pushRemote, "remote", "", "remote to push to (default origin)")
	pushCmd.Flags().StringVar(&pushRefSpec, "refspec", "", "refspec to push instead of the current branch")
	pushCmd.Flags().BoolVarP(&pushSetUpstream, "set-upstream", "u", false, "record the pushed branch as upstream")
	pushCmd.Flags().BoolVar(&pushForceLease, "force-with-lease", false, "force-push over the expected remote revision only")
	rootCmd.AddCommand(pushCmd)

	fetchCmd.Flags().StringVar(&fetchRemote, "remote", "", "remote to fetch (default origin)")
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "fetch every configured remote")
	fetchCmd.Flags().BoolVar(&fetchPrune, "prune", false, "drop remote-tracking refs deleted upstream")
	rootCmd.AddCommand(fetchCmd)

	pullCmd.Flags().StringVar(&pullRemote, "remote", "", "remote to pull from (default origin)")
	pullCmd.Flags().StringVar(&pullBranch, "branch", "", "remote branch to pull (default the configured upstream)")
	pullCmd.Flags().BoolVar(&pullRebase, "rebase", false, "replay local commits instead of merging")
	rootCmd.AddCommand(pullCmd)
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the current branch of every repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.PushOp{
			Remote:         pushRemote,
			RefSpec:        pushRefSpec,
			SetUpstream:    pushSetUpstream,
			ForceWithLease: pushForceLease,
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every repository's remote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.FetchOp{
			Remote: fetchRemote,
			All:    fetchAll,
			Prune:  fetchPrune,
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull into every repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.PullOp{
			Remote: pullRemote,
			Branch: pullBranch,
			Rebase: pullRebase,
		})
	},
}
