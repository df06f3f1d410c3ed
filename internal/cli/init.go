package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a project file from the repositories under a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}

		path := filepath.Join(abs, config.FileName)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		roots, err := config.DiscoverRoots(abs)
		if err != nil {
			return fmt.Errorf("scan %s: %w", abs, err)
		}
		if len(roots) == 0 {
			return fmt.Errorf("no git repositories under %s", abs)
		}

		cfg := config.Default()
		cfg.Roots = roots
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d repositories\n", path, len(roots))
		return nil
	},
}
