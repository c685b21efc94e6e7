package handlers

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"skim/internal/store"
)

// NewFeedCmd creates the feed management command.
func NewFeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Manage RSS/Atom feed subscriptions",
	}

	cmd.AddCommand(newFeedAddCmd())
	cmd.AddCommand(newFeedListCmd())
	cmd.AddCommand(newFeedRemoveCmd())
	cmd.AddCommand(newFeedRenameCmd())

	return cmd
}

func newFeedAddCmd() *cobra.Command {
	var name, category string

	cmd := &cobra.Command{
		Use:   "add <feed-url>",
		Short: "Subscribe to an RSS/Atom feed",
		Long: `Subscribe to a feed. The feed is fetched once to validate it and pick up
its title, then refreshed on the normal schedule.

Examples:
  skim feed add https://hnrss.org/newest
  skim feed add --name "Go Blog" https://go.dev/blog/feed.atom`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedAdd(args[0], name, category)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the feed's title)")
	cmd.Flags().StringVar(&category, "category", "", "Optional category")

	return cmd
}

func newFeedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscribed feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedList()
		},
	}
}

func newFeedRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <feed-id>",
		Short: "Unsubscribe from a feed (its articles are removed too)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid feed id %q", args[0])
			}
			return runFeedRemove(id)
		},
	}
}

func newFeedRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <feed-id> <new-name>",
		Short: "Rename a feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid feed id %q", args[0])
			}
			return runFeedRename(id, args[1])
		},
	}
}

func runFeedAdd(feedURL, name, category string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if existing, err := app.Store.GetFeedByURL(feedURL); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("already subscribed to %q (feed %d)", existing.Name, existing.ID)
	}

	// Validate the feed before subscribing.
	parsed, err := app.Parser.FetchFeed(contextWithInterrupt(), feedURL, "", "")
	if err != nil {
		return fmt.Errorf("failed to validate feed: %w", err)
	}
	if name == "" {
		name = parsed.Title
	}
	if name == "" {
		name = feedURL
	}

	id, err := app.Store.AddFeed(feedURL, name, category)
	if err != nil {
		return fmt.Errorf("failed to add feed: %w", err)
	}

	fmt.Println("Feed added")
	fmt.Printf("  ID:    %d\n", id)
	fmt.Printf("  Name:  %s\n", name)
	fmt.Printf("  Items: %d\n", len(parsed.Items))
	fmt.Println("\nRun 'skim refresh' to ingest its articles.")
	return nil
}

func runFeedList() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	feedList, err := app.Store.ListFeeds(0)
	if err != nil {
		return err
	}
	if len(feedList) == 0 {
		fmt.Println("No feeds. Subscribe with: skim feed add <feed-url>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tUNREAD\tLAST FETCHED\tSTATUS")
	for _, feed := range feedList {
		kind := ""
		switch {
		case feed.IsStandalone():
			kind = " (library)"
		case feed.IsNewsletter():
			kind = " (newsletter)"
		}
		unread, err := app.Store.UnreadCountForFeed(0, feed.ID)
		if err != nil {
			return err
		}
		lastFetched := "never"
		if feed.LastFetched != nil {
			lastFetched = feed.LastFetched.Format("2006-01-02 15:04")
		}
		status := "ok"
		if feed.FetchError != "" {
			status = "error: " + feed.FetchError
		}
		fmt.Fprintf(w, "%d\t%s%s\t%s\t%d\t%s\t%s\n", feed.ID, feed.Name, kind, feed.Category, unread, lastFetched, status)
	}
	return w.Flush()
}

func runFeedRemove(id int64) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	feed, err := app.Store.GetFeed(id)
	if err != nil {
		return err
	}
	if feed == nil {
		return fmt.Errorf("no feed with id %d", id)
	}
	if err := app.Store.DeleteFeed(id); err != nil {
		return err
	}
	fmt.Printf("Removed feed %q\n", feed.Name)
	return nil
}

func runFeedRename(id int64, name string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.UpdateFeed(id, store.FeedUpdate{Name: &name}); err != nil {
		return err
	}
	fmt.Printf("Feed %d renamed to %q\n", id, name)
	return nil
}
