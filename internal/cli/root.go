// Package cli holds the githerd command set.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/app"
	"github.com/githerd/githerd/internal/config"
	"github.com/githerd/githerd/internal/engine"
	"github.com/githerd/githerd/internal/prompt"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagJSON      bool
	flagYes       bool
	flagDryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "githerd",
	Short: "Run git operations across a set of repositories",
	Long: `githerd drives git across every repository of a working set in one go:
checkouts, branch housekeeping, cherry-picks, pushes and a resumable
multi-repository rebase. Repositories are processed in a fixed order, a
failure halts the run, and completed repositories can be rolled back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "project file (default "+config.FileName+" in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print summaries as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "answer prompts with a fixed non-interactive policy")
	rootCmd.PersistentFlags().BoolVarP(&flagDryRun, "dry-run", "n", false, "show what would run without touching any repository")
}

// Execute runs the command tree under ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.FileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	return cfg, nil
}

func decider() prompt.Decider {
	if flagYes {
		return prompt.Auto{Rollback: true, LocalChanges: prompt.ChoiceSmart}
	}
	return prompt.NewTerminal()
}

func openSession(cmd *cobra.Command) (*app.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return app.Open(cmd.Context(), cfg, log, decider())
}

// runOperation drives one engine operation over the session's repositories:
// subsystem write lock, engine on a background worker, questions relayed to
// this goroutine, summary printed at the end.
func runOperation(cmd *cobra.Command, op engine.Operation) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return runOperationWith(cmd, s, op)
}

// runOperationWith is runOperation over an already open session.
func runOperationWith(cmd *cobra.Command, s *app.Session, op engine.Operation) error {
	if flagDryRun {
		return printDryRun(cmd.OutOrStdout(), op.Name(), s.Roots())
	}

	ctx := cmd.Context()
	if err := s.Store.Lock(ctx); err != nil {
		return err
	}
	defer s.Store.Unlock()

	sum, err := relayTo(s.Decide, func(ask prompt.Decider) (engine.Summary, error) {
		return s.Engine(ask).Run(ctx, op), nil
	})
	if err != nil {
		return err
	}
	if err := printSummary(cmd.OutOrStdout(), sum); err != nil {
		return err
	}
	return summaryError(sum)
}

// relayTo runs work on a background goroutine while its questions are
// answered with decide on the calling goroutine, which owns the terminal.
func relayTo(decide prompt.Decider, work func(ask prompt.Decider) (engine.Summary, error)) (engine.Summary, error) {
	type outcome struct {
		sum engine.Summary
		err error
	}
	relay := prompt.NewRelay()
	done := make(chan outcome, 1)
	go func() {
		defer relay.Close()
		sum, err := work(relay)
		done <- outcome{sum, err}
	}()
	relay.Serve(decide)
	out := <-done
	return out.sum, out.err
}

func printDryRun(w io.Writer, name string, roots []string) error {
	for _, root := range roots {
		fmt.Fprintf(w, "would %s in %s\n", name, root)
	}
	return nil
}

func printSummary(w io.Writer, sum engine.Summary) error {
	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}

	fmt.Fprintf(w, "%s\n", sum.Operation)
	for _, r := range sum.Results {
		fmt.Fprintf(w, "  %-10s %s", r.Status, filepath.Base(r.Root))
		if r.Reason != "" {
			fmt.Fprintf(w, "  (%s)", r.Reason)
		}
		fmt.Fprintln(w)
	}
	if sum.RolledBack {
		fmt.Fprintln(w, "  completed repositories rolled back")
	}
	for _, e := range sum.RollbackErrors {
		fmt.Fprintf(w, "  rollback: %s\n", e)
	}
	return nil
}

// summaryError turns a halted run into the command's exit error.
func summaryError(sum engine.Summary) error {
	var failed, suspended []string
	for _, r := range sum.Results {
		switch r.Status {
		case engine.StatusFailed:
			failed = append(failed, filepath.Base(r.Root))
		case engine.StatusSuspended:
			suspended = append(suspended, filepath.Base(r.Root))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s failed in %s", sum.Operation, strings.Join(failed, ", "))
	}
	if len(suspended) > 0 {
		return fmt.Errorf("%s suspended in %s", sum.Operation, strings.Join(suspended, ", "))
	}
	return nil
}
