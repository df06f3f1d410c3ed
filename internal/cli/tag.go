package cli

import (
	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/engine"
)

var (
	tagRev     string
	tagMessage string
	tagForce   bool
)

func init() {
	tagCmd.Flags().StringVar(&tagRev, "rev", "", "revision to tag (default each repository's HEAD)")
	tagCmd.Flags().StringVarP(&tagMessage, "message", "m", "", "annotate the tag with this message")
	tagCmd.Flags().BoolVarP(&tagForce, "force", "f", false, "replace an existing tag")
	rootCmd.AddCommand(tagCmd)
}

var tagCmd = &cobra.Command{
	Use:   "tag <name>",
	Short: "Tag a revision in every repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, &engine.TagOp{
			Tag:     args[0],
			Rev:     tagRev,
			Message: tagMessage,
			Force:   tagForce,
		})
	},
}
