package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/app"
	"github.com/githerd/githerd/internal/bridge"
	"github.com/githerd/githerd/internal/engine"
	"github.com/githerd/githerd/internal/prompt"
	"github.com/githerd/githerd/internal/rebase"
	"github.com/githerd/githerd/internal/state"
)

var (
	rebaseUpstream     string
	rebaseOnto         string
	rebaseBranch       string
	rebaseInteractive  bool
	rebaseMerges       bool
	rebasePlan         string
	rebaseContinueFlag bool
	rebaseSkipFlag     bool
	rebaseAbortFlag    bool
)

func init() {
	f := rebaseCmd.Flags()
	f.StringVar(&rebaseUpstream, "upstream", "", "rebase onto this upstream")
	f.StringVar(&rebaseOnto, "onto", "", "transplant the commits onto this ref instead of the upstream")
	f.StringVar(&rebaseBranch, "branch", "", "rebase this branch instead of the current one")
	f.BoolVarP(&rebaseInteractive, "interactive", "i", false, "run through the rebase todo list")
	f.BoolVar(&rebaseMerges, "rebase-merges", false, "recreate merge commits")
	f.StringVar(&rebasePlan, "plan", "", "apply this todo plan to every repository's rebase")
	f.BoolVar(&rebaseContinueFlag, "continue", false, "continue a suspended rebase")
	f.BoolVar(&rebaseSkipFlag, "skip", false, "skip the conflicting commit and continue a suspended rebase")
	f.BoolVar(&rebaseAbortFlag, "abort", false, "abort the rebase and restore every repository")
	rebaseCmd.MarkFlagsMutuallyExclusive("continue", "skip", "abort")
	rootCmd.AddCommand(rebaseCmd)
}

var rebaseCmd = &cobra.Command{
	Use:   "rebase",
	Short: "Rebase every repository, resumable across conflicts",
	Long: `Rebases every repository onto the upstream, one repository at a time. A
conflict suspends the whole run with the native rebase left in place; rerun
with --continue or --skip once resolved, or --abort to restore all
repositories to where they started.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if err := s.Store.Lock(ctx); err != nil {
			return err
		}
		defer s.Store.Unlock()

		if rebaseContinueFlag || rebaseSkipFlag || rebaseAbortFlag {
			return resumeRebase(cmd, s)
		}
		return startRebase(cmd, s)
	},
}

func startRebase(cmd *cobra.Command, s *app.Session) error {
	if rebaseUpstream == "" && rebaseOnto == "" {
		return errors.New("--upstream or --onto is required to start a rebase")
	}
	if _, err := s.Store.LoadRebase(s.Roots()); err == nil {
		return errors.New("a rebase is already in progress; finish it with --continue, --skip or --abort")
	} else if !errors.Is(err, state.ErrNoRebase) {
		return err
	}

	params := rebase.Params{
		Upstream:     rebaseUpstream,
		Onto:         rebaseOnto,
		Branch:       rebaseBranch,
		Interactive:  rebaseInteractive,
		RebaseMerges: rebaseMerges,
	}
	env, err := rebaseEnv(s, &params)
	if err != nil {
		return err
	}
	if flagDryRun {
		return printDryRun(cmd.OutOrStdout(), params.Describe(), s.Roots())
	}

	sum, err := relayTo(s.Decide, func(ask prompt.Decider) (engine.Summary, error) {
		return s.Machine(ask, env).Run(cmd.Context(), params), nil
	})
	if err != nil {
		return err
	}
	return finishRebase(cmd.OutOrStdout(), sum)
}

func resumeRebase(cmd *cobra.Command, s *app.Session) error {
	spec, err := s.Store.LoadRebase(s.Roots())
	if errors.Is(err, state.ErrNoRebase) {
		return errors.New("no rebase in progress")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rebaseAbortFlag {
		if flagDryRun {
			fmt.Fprintf(out, "would abort %s\n", spec.Params.Describe())
			return nil
		}
		if err := s.Machine(s.Decide, nil).Abort(cmd.Context(), spec); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s aborted, repositories restored\n", spec.Params.Describe())
		return nil
	}

	env, err := rebaseEnv(s, &spec.Params)
	if err != nil {
		return err
	}
	mode := rebase.ResumeContinue
	if rebaseSkipFlag {
		mode = rebase.ResumeSkip
	}
	if flagDryRun {
		fmt.Fprintf(out, "would %s %s\n", mode, spec.Params.Describe())
		return nil
	}
	sum, err := relayTo(s.Decide, func(ask prompt.Decider) (engine.Summary, error) {
		return s.Machine(ask, env).Resume(cmd.Context(), spec, mode)
	})
	if err != nil {
		return err
	}
	return finishRebase(out, sum)
}

// rebaseEnv builds the sequence editor environment for interactive runs. A
// plan implies an interactive rebase, the todo rewrite happens through it.
func rebaseEnv(s *app.Session, params *rebase.Params) ([]string, error) {
	plan := rebasePlan
	if plan != "" {
		abs, err := filepath.Abs(plan)
		if err != nil {
			return nil, err
		}
		plan = abs
		params.Interactive = true
	}
	if !params.Interactive {
		return nil, nil
	}
	return bridge.SequenceEditorEnv(s.Executable(), plan), nil
}

func finishRebase(w io.Writer, sum engine.Summary) error {
	if err := printSummary(w, sum); err != nil {
		return err
	}
	for _, r := range sum.Results {
		if r.Status == engine.StatusSuspended {
			fmt.Fprintln(w, "resolve the conflicts, then rerun with --continue, --skip or --abort")
			break
		}
	}
	return summaryError(sum)
}
