package handlers

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"skim/internal/core"
)

// NewNotifyCmd creates the notification rule management command.
func NewNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage notification rules and history",
	}

	cmd.AddCommand(newNotifyAddCmd())
	cmd.AddCommand(newNotifyListCmd())
	cmd.AddCommand(newNotifyRemoveCmd())
	cmd.AddCommand(newNotifyHistoryCmd())
	cmd.AddCommand(newNotifyDismissCmd())
	cmd.AddCommand(newNotifyToggleCmd("enable", true))
	cmd.AddCommand(newNotifyToggleCmd("disable", false))

	return cmd
}

func newNotifyToggleCmd(use string, enabled bool) *cobra.Command {
	short := "Enable a rule"
	if !enabled {
		short = "Disable a rule without deleting it"
	}
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			return runNotifyToggle(id, enabled)
		},
	}
}

func runNotifyToggle(id int64, enabled bool) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rule, err := app.Store.GetNotificationRule(id)
	if err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("no rule with id %d", id)
	}
	rule.Enabled = enabled
	if err := app.Store.UpdateNotificationRule(rule); err != nil {
		return err
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("Rule %q %s\n", rule.Name, state)
	return nil
}

func newNotifyAddCmd() *cobra.Command {
	var (
		keyword  string
		author   string
		feedID   int64
		priority string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a notification rule",
		Long: `Add a rule matched against every newly ingested article. A rule needs at
least one filter: --keyword, --author, or --feed.

Examples:
  skim notify add "Go releases" --keyword "go 1." --priority high
  skim notify add "Favorite blog" --feed 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyAdd(args[0], keyword, author, feedID, priority)
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "Match a keyword in title, summary, or content")
	cmd.Flags().StringVar(&author, "author", "", "Match an author name")
	cmd.Flags().Int64Var(&feedID, "feed", 0, "Restrict to (or match everything in) this feed id")
	cmd.Flags().StringVar(&priority, "priority", "normal", "Priority (high|normal|low)")

	return cmd
}

func runNotifyAdd(name, keyword, author string, feedID int64, priority string) error {
	rule := &core.NotificationRule{
		Name:     name,
		Keyword:  keyword,
		Author:   author,
		Priority: core.Priority(priority),
		Enabled:  true,
	}
	if feedID != 0 {
		rule.FeedID = &feedID
	}
	if !rule.HasFilter() {
		return fmt.Errorf("a rule needs at least one of --keyword, --author, or --feed")
	}
	switch rule.Priority {
	case core.PriorityHigh, core.PriorityNormal, core.PriorityLow:
	default:
		return fmt.Errorf("invalid priority %q", priority)
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.Store.AddNotificationRule(rule)
	if err != nil {
		return err
	}
	fmt.Printf("Rule %d added\n", id)
	return nil
}

func newNotifyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List notification rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyList()
		},
	}
}

func runNotifyList() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rules, err := app.Store.ListNotificationRules(false)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No rules. Add one with: skim notify add")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKEYWORD\tAUTHOR\tFEED\tPRIORITY\tENABLED")
	for _, r := range rules {
		feed := ""
		if r.FeedID != nil {
			feed = strconv.FormatInt(*r.FeedID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%v\n",
			r.ID, r.Name, r.Keyword, r.Author, feed, r.Priority, r.Enabled)
	}
	return w.Flush()
}

func newNotifyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <rule-id>",
		Short: "Remove a notification rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			return runNotifyRemove(id)
		},
	}
}

func runNotifyRemove(id int64) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.DeleteNotificationRule(id); err != nil {
		return err
	}
	fmt.Printf("Rule %d removed\n", id)
	return nil
}

func newNotifyHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyHistory(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")

	return cmd
}

func newNotifyDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <history-id>",
		Short: "Dismiss a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			return runNotifyDismiss(id)
		},
	}
}

func runNotifyDismiss(id int64) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.DismissNotification(id); err != nil {
		return err
	}
	fmt.Printf("Notification %d dismissed\n", id)
	return nil
}

func runNotifyHistory(limit int) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	entries, err := app.Store.ListNotificationHistory(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No notifications yet")
		return nil
	}

	for _, e := range entries {
		title := fmt.Sprintf("article %d", e.ArticleID)
		if article, err := app.Store.GetArticle(e.ArticleID); err == nil && article != nil {
			title = article.Title
		}
		marker := " "
		if e.Dismissed {
			marker = "x"
		}
		fmt.Printf("%d [%s] %s  %s\n", e.ID, marker, e.NotifiedAt.Format("2006-01-02 15:04"), title)
	}
	return nil
}
