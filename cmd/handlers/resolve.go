package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewResolveCmd creates the aggregator source-resolution command.
func NewResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <article-id>",
		Short: "Resolve an aggregator article's publisher URL and refetch it",
		Long: `Decode the publisher URL behind an aggregator link (Techmeme, Google
News, Reddit, Hacker News), record it as the article's source URL, and
refetch the article content from the publisher.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article id %q", args[0])
			}
			return runResolve(id)
		},
	}
}

func runResolve(id int64) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	article, err := app.Scheduler.FetchSourceArticle(contextWithInterrupt(), id)
	if err != nil {
		return err
	}

	fmt.Println("Source article fetched")
	fmt.Printf("  Title:  %s\n", article.Title)
	fmt.Printf("  Source: %s\n", article.SourceURL)
	fmt.Printf("  Words:  %d\n", article.WordCount)
	return nil
}
