// Package handlers wires the CLI commands to the application components.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "skim",
		Short: "skim is a personal reading pipeline: feeds, newsletters, and a library with summaries.",
		Long: `skim ingests RSS/Atom feeds, Gmail newsletters, submitted URLs, and
file uploads into one searchable reading library. Articles are fetched with
paywall and bot-wall fallbacks, optionally summarized by a language model,
matched against notification rules, and clustered into topics.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(NewFeedCmd())
	rootCmd.AddCommand(NewRefreshCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewAddCmd())
	rootCmd.AddCommand(NewUploadCmd())
	rootCmd.AddCommand(NewResolveCmd())
	rootCmd.AddCommand(NewSummarizeCmd())
	rootCmd.AddCommand(NewRelatedCmd())
	rootCmd.AddCommand(NewTopicsCmd())
	rootCmd.AddCommand(NewNotifyCmd())
	rootCmd.AddCommand(NewGmailCmd())
	rootCmd.AddCommand(NewSearchCmd())
	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewMarkCmd())
	rootCmd.AddCommand(NewBookmarkCmd())
	rootCmd.AddCommand(NewSettingsCmd())
	rootCmd.AddCommand(NewCacheCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
