package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewMarkCmd creates the read-state command.
func NewMarkCmd() *cobra.Command {
	var unread bool
	var feedID int64
	var all bool

	cmd := &cobra.Command{
		Use:   "mark [article-id...]",
		Short: "Mark articles read or unread",
		Long: `Mark the given articles read. With --unread, mark them unread instead.
--feed marks everything in one feed read; --all marks everything read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return runMark(ids, unread, feedID, all)
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Mark unread instead of read")
	cmd.Flags().Int64Var(&feedID, "feed", 0, "Mark every article in this feed read")
	cmd.Flags().BoolVar(&all, "all", false, "Mark every article read")

	return cmd
}

func runMark(ids []int64, unread bool, feedID int64, all bool) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	switch {
	case all:
		if err := app.Store.MarkAllRead(0); err != nil {
			return err
		}
		fmt.Println("All articles marked read")
	case feedID != 0:
		if err := app.Store.MarkFeedRead(0, feedID); err != nil {
			return err
		}
		fmt.Printf("Feed %d marked read\n", feedID)
	case len(ids) == 0:
		return fmt.Errorf("nothing to mark; pass article ids, --feed, or --all")
	case unread:
		for _, id := range ids {
			if err := app.Store.MarkRead(0, id, false); err != nil {
				return err
			}
		}
		fmt.Printf("%d article(s) marked unread\n", len(ids))
	default:
		if err := app.Store.MarkReadBulk(0, ids); err != nil {
			return err
		}
		fmt.Printf("%d article(s) marked read\n", len(ids))
	}

	remaining, err := app.Store.UnreadCount(0)
	if err != nil {
		return err
	}
	fmt.Printf("%d unread\n", remaining)
	return nil
}

// NewBookmarkCmd creates the bookmark toggle command.
func NewBookmarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bookmark <article-id>",
		Short: "Toggle an article's bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article id %q", args[0])
			}
			return runBookmark(id)
		},
	}
}

func runBookmark(id int64) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	article, err := app.Store.GetArticle(id)
	if err != nil {
		return err
	}
	if article == nil {
		return fmt.Errorf("article %d not found", id)
	}

	bookmarked, err := app.Store.ToggleBookmark(0, id)
	if err != nil {
		return err
	}
	if bookmarked {
		fmt.Printf("Bookmarked: %s\n", article.Title)
	} else {
		fmt.Printf("Bookmark removed: %s\n", article.Title)
	}
	return nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid article id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
