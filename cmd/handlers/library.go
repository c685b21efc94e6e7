package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewAddCmd creates the add command for standalone URL submissions.
func NewAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Save a URL to the library",
		Long: `Fetch a URL and save it as a standalone library item. Aggregator links
(Techmeme, Google News, Reddit, Hacker News) are resolved to the underlying
publisher article first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(args[0])
		},
	}
}

func runAdd(rawURL string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	article, err := app.Library.AddURL(contextWithInterrupt(), rawURL, 0)
	if err != nil {
		return err
	}

	fmt.Println("Saved to library")
	fmt.Printf("  ID:    %d\n", article.ID)
	fmt.Printf("  Title: %s\n", article.Title)
	if article.SourceURL != "" {
		fmt.Printf("  Via:   %s\n", article.SourceURL)
	}
	if article.WordCount > 0 {
		fmt.Printf("  Words: %d (~%d min)\n", article.WordCount, article.ReadingMinutes)
	}
	if article.Paywalled {
		fmt.Println("  Note:  page looked paywalled; content may be partial")
	}
	return nil
}

// NewUploadCmd creates the upload command for files.
func NewUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file (pdf, docx, txt, md, html, eml) to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(args[0])
		},
	}
}

func runUpload(path string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	article, err := app.Library.AddUpload(filepath.Base(path), data, 0)
	if err != nil {
		return err
	}

	fmt.Println("Uploaded to library")
	fmt.Printf("  ID:     %d\n", article.ID)
	fmt.Printf("  Title:  %s\n", article.Title)
	fmt.Printf("  Type:   %s\n", article.ContentType)
	fmt.Printf("  Stored: %s\n", article.StoragePath)
	return nil
}
