package handlers

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache maintenance command.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the content and summary cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired disk cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheCleanup()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop the entire cache (summaries will be regenerated)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear()
		},
	})

	return cmd
}

func runCacheCleanup() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	removed, err := app.Cache.CleanupExpired()
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d expired entries\n", removed)
	return nil
}

func runCacheClear() error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Cache.Clear(); err != nil {
		return err
	}
	fmt.Println("Cache cleared")
	return nil
}
