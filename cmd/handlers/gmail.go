package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"skim/internal/core"
)

// NewGmailCmd creates the Gmail newsletter poller command.
func NewGmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gmail",
		Short: "Manage the Gmail newsletter poller",
	}

	cmd.AddCommand(newGmailSetupCmd())
	cmd.AddCommand(newGmailStatusCmd())
	cmd.AddCommand(newGmailToggleCmd("enable", true))
	cmd.AddCommand(newGmailToggleCmd("disable", false))
	cmd.AddCommand(newGmailPollCmd())
	cmd.AddCommand(newGmailRemoveCmd())

	return cmd
}

func newGmailRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Remove the Gmail configuration entirely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGmailRemove()
		},
	}
}

func runGmailRemove() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.DeleteGmailConfig(); err != nil {
		return err
	}
	fmt.Println("Gmail configuration removed")
	return nil
}

func newGmailSetupCmd() *cobra.Command {
	var (
		email        string
		refreshToken string
		label        string
		interval     int
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the Gmail account to poll",
		Long: `Store the Gmail account and OAuth refresh token used for newsletter
polling. The OAuth client credentials come from GMAIL_CLIENT_ID and
GMAIL_CLIENT_SECRET; an access token is minted from the refresh token on
each poll.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGmailSetup(email, refreshToken, label, interval)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Gmail address (required)")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token (required)")
	cmd.Flags().StringVar(&label, "label", "Newsletters", "Gmail label to poll")
	cmd.Flags().IntVar(&interval, "interval", 30, "Poll interval in minutes")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("refresh-token")

	return cmd
}

func runGmailSetup(email, refreshToken, label string, interval int) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := &core.GmailConfig{
		Email:               email,
		RefreshToken:        refreshToken,
		Label:               label,
		PollIntervalMinutes: interval,
		Enabled:             true,
	}
	if err := app.Store.SaveGmailConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("Gmail polling configured for %s (label %q, every %d min)\n", email, label, interval)
	if app.Mailer == nil {
		fmt.Println("Note: GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET are not set; polling will fail until they are.")
	}
	return nil
}

func newGmailStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the Gmail poller configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGmailStatus()
		},
	}
}

func runGmailStatus() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	cfg, err := app.Store.GetGmailConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		fmt.Println("Gmail polling is not configured; run: skim gmail setup")
		return nil
	}

	fmt.Printf("Account:  %s\n", cfg.Email)
	fmt.Printf("Label:    %s\n", cfg.Label)
	fmt.Printf("Interval: %d min\n", cfg.PollIntervalMinutes)
	fmt.Printf("Enabled:  %v\n", cfg.Enabled)
	fmt.Printf("Last UID: %d\n", cfg.LastUID)
	if !cfg.TokenExpiresAt.IsZero() {
		fmt.Printf("Token expires: %s\n", cfg.TokenExpiresAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func newGmailToggleCmd(use string, enabled bool) *cobra.Command {
	short := "Enable the Gmail poller"
	if !enabled {
		short = "Disable the Gmail poller"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGmailToggle(enabled)
		},
	}
}

func runGmailToggle(enabled bool) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	cfg, err := app.Store.GetGmailConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("gmail polling is not configured; run: skim gmail setup")
	}
	cfg.Enabled = enabled
	if err := app.Store.SaveGmailConfig(cfg); err != nil {
		return err
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("Gmail polling %s\n", state)
	return nil
}

func newGmailPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one poll cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGmailPoll()
		},
	}
}

func runGmailPoll() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Mailer == nil {
		return fmt.Errorf("GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET are not set")
	}
	cfg, err := app.Store.GetGmailConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("gmail polling is not configured; run: skim gmail setup")
	}

	if err := app.Scheduler.PollGmailOnce(contextWithInterrupt(), cfg); err != nil {
		return err
	}
	fmt.Printf("Poll complete; last UID is now %d\n", cfg.LastUID)
	return nil
}
