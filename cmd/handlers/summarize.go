package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"skim/internal/core"
	"skim/internal/llm"
)

// NewSummarizeCmd creates the summarize command.
func NewSummarizeCmd() *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "summarize <article-id>",
		Short: "Summarize an article with the configured language model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article id %q", args[0])
			}
			return runSummarize(id, tier)
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Force a model tier (fast|standard|advanced)")

	return cmd
}

func runSummarize(id int64, tier string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Summarizer == nil {
		return fmt.Errorf("no LLM provider configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GOOGLE_API_KEY)")
	}

	article, err := app.Store.GetArticle(id)
	if err != nil {
		return err
	}
	if article == nil {
		return fmt.Errorf("no article with id %d", id)
	}

	summary, err := app.Summarizer.SummarizeArticle(contextWithInterrupt(), article, llm.ModelTier(tier))
	if err != nil {
		return err
	}
	if err := app.Store.UpdateArticleSummary(id, *summary); err != nil {
		return err
	}

	printSummary(article, summary)
	return nil
}

func printSummary(article *core.Article, summary *core.Summary) {
	fmt.Printf("%s\n\n", article.Title)
	fmt.Printf("%s\n\n", summary.Headline)
	fmt.Println(summary.SummaryText)
	if len(summary.KeyPoints) > 0 {
		fmt.Println("\nKey points:")
		for _, point := range summary.KeyPoints {
			fmt.Printf("  - %s\n", point)
		}
	}
	fmt.Printf("\n(model tier: %s, content type: %s)\n", summary.ModelTier, summary.ContentType)
}

// NewRelatedCmd creates the related-links command.
func NewRelatedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "related <article-id>",
		Short: "Find related reading for an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article id %q", args[0])
			}
			return runRelated(id, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of results")

	return cmd
}

func runRelated(id int64, limit int) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Related == nil {
		return fmt.Errorf("related links are not configured (set EXA_API_KEY and ENABLE_RELATED_LINKS=true)")
	}

	article, err := app.Store.GetArticle(id)
	if err != nil {
		return err
	}
	if article == nil {
		return fmt.Errorf("no article with id %d", id)
	}

	links, err := app.Related.Find(contextWithInterrupt(), article, limit)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		fmt.Println("No related links found")
		return nil
	}

	fmt.Printf("Related to %q:\n\n", article.Title)
	for _, link := range links {
		fmt.Printf("  %s\n    %s", link.Title, link.URL)
		if link.PublishedDate != "" {
			fmt.Printf(" (%s)", link.PublishedDate)
		}
		fmt.Println()
		if link.Snippet != "" {
			fmt.Printf("    %s\n", link.Snippet)
		}
	}
	return nil
}
