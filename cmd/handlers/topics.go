package handlers

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"skim/internal/core"
	"skim/internal/store"
)

// NewTopicsCmd creates the topic clustering command.
func NewTopicsCmd() *cobra.Command {
	var days, limit int
	var trends bool

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Cluster recent articles into topics",
		Long: `Group recent articles into labeled topics with the configured language
model. With --trends, show which topics recur across past clustering runs
instead of running a new one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if trends {
				return runTopicTrends(days)
			}
			return runTopics(days, limit)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "How many days back to look")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of articles to cluster")
	cmd.Flags().BoolVar(&trends, "trends", false, "Show recurring topics from past runs")

	return cmd
}

func runTopics(days, limit int) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Clusterer == nil {
		return fmt.Errorf("no LLM provider configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GOOGLE_API_KEY)")
	}

	articles, err := app.Store.ListArticles(store.ArticleFilter{Limit: limit})
	if err != nil {
		return err
	}
	articles = articlesSince(articles, time.Now().AddDate(0, 0, -days))
	if len(articles) == 0 {
		fmt.Println("No recent articles to cluster")
		return nil
	}

	periodEnd := time.Now().UTC()
	periodStart := periodEnd.AddDate(0, 0, -days)
	topics, err := app.Clusterer.ClusterAndRecord(contextWithInterrupt(), articles, periodStart, periodEnd)
	if err != nil {
		return err
	}

	byID := make(map[int64]core.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}
	for _, topic := range topics {
		fmt.Printf("\n%s (%d articles)\n", topic.Label, len(topic.ArticleIDs))
		for _, id := range topic.ArticleIDs {
			if a, ok := byID[id]; ok {
				fmt.Printf("  [%d] %s\n", a.ID, a.Title)
			}
		}
	}
	return nil
}

func runTopicTrends(days int) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	since := time.Now().UTC().AddDate(0, 0, -days)
	topicTrends, err := app.Store.GetTopicTrends(since)
	if err != nil {
		return err
	}
	if len(topicTrends) == 0 {
		fmt.Println("No clustering runs in this period; run 'skim topics' first")
		return nil
	}

	fmt.Printf("Topics over the last %d days:\n\n", days)
	for _, t := range topicTrends {
		fmt.Printf("  %s: seen %d times, %d articles, last %s\n",
			t.Label, t.Occurrences, t.ArticleCount, t.LastSeen.Format("2006-01-02"))
	}
	return nil
}

func articlesSince(articles []core.Article, cutoff time.Time) []core.Article {
	var recent []core.Article
	for _, a := range articles {
		ts := a.CreatedAt
		if a.PublishedAt != nil {
			ts = *a.PublishedAt
		}
		if ts.After(cutoff) {
			recent = append(recent, a)
		}
	}
	return recent
}
