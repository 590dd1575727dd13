package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the mediatidy command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mediatidy",
		Short: "Sort and deduplicate photo, video and log collections",
		Long: `mediatidy sorts a directory of mixed files into a date-based tree
and removes duplicate files, matching images by perceptual hash, videos by
stream signature and everything else by content.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewSortCommand())
	rootCmd.AddCommand(NewDedupCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
