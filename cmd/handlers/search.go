package handlers

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"skim/internal/core"
	"skim/internal/store"
)

// NewSearchCmd creates the full-text search command.
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over titles, content, authors, and summaries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}

func runSearch(query string, limit int) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	articles, err := app.Store.SearchArticles(query, limit)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Println("No matches")
		return nil
	}
	printArticleTable(articles)
	return nil
}

// NewListCmd creates the article listing command.
func NewListCmd() *cobra.Command {
	var (
		feedID     int64
		unreadOnly bool
		bookmarked bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ArticleFilter{
				UnreadOnly:     unreadOnly,
				BookmarkedOnly: bookmarked,
				Limit:          limit,
			}
			if feedID != 0 {
				filter.FeedID = &feedID
			}
			return runList(filter)
		},
	}

	cmd.Flags().Int64Var(&feedID, "feed", 0, "Only this feed id")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only unread articles")
	cmd.Flags().BoolVar(&bookmarked, "bookmarked", false, "Only bookmarked articles")
	cmd.Flags().IntVar(&limit, "limit", 30, "Maximum number of articles")

	return cmd
}

func runList(filter store.ArticleFilter) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	articles, err := app.Store.ListArticles(filter)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Println("No articles")
		return nil
	}
	printArticleTable(articles)
	return nil
}

func printArticleTable(articles []core.Article) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tPUBLISHED\tSUMMARY")
	for _, a := range articles {
		published := ""
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format("2006-01-02")
		}
		title := a.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		summarized := ""
		if a.SummarizedAt != nil {
			summarized = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, title, a.Author, published, summarized)
	}
	_ = w.Flush()
	fmt.Printf("\n%d articles\n", len(articles))
}
