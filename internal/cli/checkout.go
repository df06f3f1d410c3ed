package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/app"
	"github.com/githerd/githerd/internal/engine"
)

var (
	checkoutBranch string
	checkoutDetach bool
)

func init() {
	checkoutCmd.Flags().StringVarP(&checkoutBranch, "branch", "b", "", "create this branch at the ref and check it out")
	checkoutCmd.Flags().BoolVar(&checkoutDetach, "detach", false, "check out without moving any branch")
	rootCmd.AddCommand(checkoutCmd)
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout [ref]",
	Short: "Check out a ref in every repository",
	Long: `Checks out the given branch, tag or revision in every repository. With no
ref the recently used branches are offered as candidates. Repositories
already on the ref are skipped, repositories without it halt the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ref, err := checkoutRef(s, args)
		if err != nil {
			return err
		}
		return runOperationWith(cmd, s, &engine.CheckoutOp{
			Ref:       ref,
			NewBranch: checkoutBranch,
			Detach:    checkoutDetach,
		})
	},
}

// checkoutRef resolves the target ref, asking the user to pick from the
// recent branches when none was given on the command line.
func checkoutRef(s *app.Session, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	candidates := s.Store.RecentBranches(s.Roots()).List()
	if len(candidates) == 0 {
		return "", errors.New("no ref given and no recent branches recorded")
	}
	ref := s.Decide.ChooseBranch(candidates)
	if ref == "" {
		return "", errors.New("checkout canceled")
	}
	return ref, nil
}
