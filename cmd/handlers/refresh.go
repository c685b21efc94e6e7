package handlers

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewRefreshCmd creates the refresh command.
func NewRefreshCmd() *cobra.Command {
	var feedID int64

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh all feeds (or one with --feed)",
		Long: `Fetch every subscribed feed and ingest its new items. Items with thin
embedded content are fetched from their page with paywall and bot-wall
fallbacks. New articles are matched against notification rules and, when
auto_summarize is on, summarized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(feedID)
		},
	}

	cmd.Flags().Int64Var(&feedID, "feed", 0, "Refresh only this feed id")

	return cmd
}

func runRefresh(feedID int64) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := contextWithInterrupt()

	if feedID != 0 {
		feed, err := app.Store.GetFeed(feedID)
		if err != nil {
			return err
		}
		if feed == nil {
			return fmt.Errorf("no feed with id %d", feedID)
		}
		added, err := app.Scheduler.RefreshFeed(ctx, feed)
		if statusErr := app.Store.UpdateFeedFetchStatus(feed.ID, errText(err)); statusErr != nil {
			return statusErr
		}
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %q: %d new articles\n", feed.Name, added)
		printNotifications(app)
		return nil
	}

	stats, err := app.Scheduler.RefreshAll(ctx)
	if err != nil {
		return err
	}
	if stats.Skipped {
		fmt.Println("A refresh is already running")
		return nil
	}
	fmt.Printf("Refreshed %d feeds (%d failed): %d new articles\n",
		stats.FeedsRefreshed, stats.FeedsFailed, stats.NewArticles)
	printNotifications(app)
	return nil
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func printNotifications(app *App) {
	matches := app.Scheduler.DrainNotifications()
	if len(matches) == 0 {
		return
	}
	fmt.Printf("\n%d notifications:\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  [%s] %s (%s)\n", m.Priority, m.Article.Title, m.Reason)
	}
}

// NewWatchCmd creates the watch command: the long-running scheduler mode.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the refresh loop and Gmail poller until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

func runWatch() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := contextWithInterrupt()
	fmt.Println("Watching feeds; Ctrl-C to stop.")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Scheduler.RunRefreshLoop(ctx) })
	g.Go(func() error { return app.Scheduler.RunGmailPoller(ctx) })

	if err := g.Wait(); err != nil && err != ctx.Err() {
		return err
	}
	return nil
}
