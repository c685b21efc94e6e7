// Package library handles standalone reading-list intake: URL submissions
// and file uploads (PDF, DOCX, TXT, Markdown, HTML, EML). Items land in the
// reserved standalone pseudo-feed.
package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"skim/internal/core"
	"skim/internal/fetch"
	"skim/internal/logger"
	"skim/internal/resolver"
)

// Store is the subset of the article store the library needs.
type Store interface {
	GetOrCreateFeed(url, name string) (*core.Feed, error)
	GetArticleByURL(url string) (*core.Article, error)
	AddArticle(a *core.Article) (int64, error)
}

// Fetcher fetches submitted URLs with fallbacks.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, policy fetch.Policy) (*fetch.Result, error)
}

// Resolver maps aggregator URLs to publisher URLs.
type Resolver interface {
	Resolve(ctx context.Context, rawURL, description string) resolver.Result
}

// Options configures library intake.
type Options struct {
	UploadsDir      string
	MaxUploadSizeMB int64
}

// DefaultOptions returns the standard library configuration.
func DefaultOptions() Options {
	return Options{UploadsDir: "uploads", MaxUploadSizeMB: 50}
}

// Library ingests standalone items.
type Library struct {
	store    Store
	fetcher  Fetcher
	resolver Resolver
	options  Options
}

// New creates a library. resolver may be nil to skip aggregator resolution.
func New(store Store, fetcher Fetcher, resolver Resolver, options Options) *Library {
	if options.UploadsDir == "" {
		options.UploadsDir = "uploads"
	}
	if options.MaxUploadSizeMB == 0 {
		options.MaxUploadSizeMB = 50
	}
	return &Library{store: store, fetcher: fetcher, resolver: resolver, options: options}
}

// AddURL fetches a submitted URL and stores it as a standalone library item.
// Aggregator URLs are resolved to their publisher first. A duplicate URL
// returns the existing article.
func (l *Library) AddURL(ctx context.Context, rawURL string, userID int64) (*core.Article, error) {
	targetURL := rawURL
	sourceURL := ""
	if l.resolver != nil && resolver.IsAggregator(rawURL) {
		result := l.resolver.Resolve(ctx, rawURL, "")
		if result.SourceURL != "" {
			targetURL = result.SourceURL
			sourceURL = result.SourceURL
		} else if result.Err != "" {
			logger.Warn("aggregator resolution failed, fetching original", "url", rawURL, "error", result.Err)
		}
	}

	if existing, err := l.store.GetArticleByURL(rawURL); err == nil && existing != nil {
		return existing, nil
	}

	result, err := l.fetcher.Fetch(ctx, targetURL, fetch.Policy{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submitted URL: %w", err)
	}

	feed, err := l.standaloneFeed()
	if err != nil {
		return nil, err
	}

	published := result.PublishedAt
	article := &core.Article{
		FeedID:         feed.ID,
		URL:            rawURL,
		SourceURL:      sourceURL,
		Title:          result.Title,
		Author:         result.Author,
		Content:        result.Content,
		ContentHash:    result.ContentHash,
		PublishedAt:    published,
		WordCount:      result.WordCount,
		ReadingMinutes: result.ReadingMinutes,
		ImageURL:       result.ImageURL,
		HasCodeBlocks:  result.HasCodeBlocks,
		CodeLanguages:  result.CodeLanguages,
		SiteName:       result.SiteName,
		Tags:           result.Tags,
		Paywalled:      result.Paywalled,
		Extractor:      result.Extractor,
		ContentType:    core.ContentTypeURL,
		UserID:         userID,
	}
	id, err := l.store.AddArticle(article)
	if err != nil {
		return nil, fmt.Errorf("failed to store library item: %w", err)
	}
	if id == 0 {
		// Raced with another insert of the same URL.
		return l.store.GetArticleByURL(rawURL)
	}
	article.ID = id
	return article, nil
}

// AddUpload persists an uploaded file under a UUID name and stores its
// extracted text as a library item.
func (l *Library) AddUpload(filename string, data []byte, userID int64) (*core.Article, error) {
	maxBytes := l.options.MaxUploadSizeMB << 20
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("upload exceeds %d MB limit", l.options.MaxUploadSizeMB)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	contentType, ok := uploadContentTypes[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported upload type %q", ext)
	}

	extracted, err := extractUpload(ext, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s content: %w", ext, err)
	}

	storagePath, err := l.persistUpload(ext, data)
	if err != nil {
		return nil, err
	}

	feed, err := l.standaloneFeed()
	if err != nil {
		return nil, err
	}

	title := extracted.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	article := &core.Article{
		FeedID:      feed.ID,
		URL:         "upload://" + filepath.Base(storagePath),
		Title:       title,
		Author:      extracted.Author,
		Content:     extracted.Content,
		ContentHash: fetch.HashContent(extracted.Content),
		ContentType: contentType,
		Filename:    filename,
		StoragePath: storagePath,
		UserID:      userID,
	}
	if extracted.Date != nil {
		article.PublishedAt = extracted.Date
	}

	id, err := l.store.AddArticle(article)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if id == 0 {
		return nil, fmt.Errorf("upload already exists")
	}
	article.ID = id
	return article, nil
}

var uploadContentTypes = map[string]string{
	"pdf":  core.ContentTypePDF,
	"docx": core.ContentTypeDOCX,
	"txt":  core.ContentTypeTXT,
	"md":   core.ContentTypeMD,
	"html": core.ContentTypeHTML,
	"htm":  core.ContentTypeHTML,
	"eml":  core.ContentTypeNewsletter,
}

// extractedUpload is text and metadata pulled from one uploaded file.
type extractedUpload struct {
	Title   string
	Author  string
	Content string
	Date    *time.Time
}

func extractUpload(ext string, data []byte) (*extractedUpload, error) {
	switch ext {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "txt":
		return &extractedUpload{Content: "<pre>" + string(data) + "</pre>"}, nil
	case "md":
		return extractMarkdown(data)
	case "html", "htm":
		return extractHTMLUpload(data)
	case "eml":
		return extractEML(data)
	default:
		return nil, fmt.Errorf("no extractor for %q", ext)
	}
}

func (l *Library) persistUpload(ext string, data []byte) (string, error) {
	if err := os.MkdirAll(l.options.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}
	name := uuid.NewString() + "." + ext
	path := filepath.Join(l.options.UploadsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to persist upload: %w", err)
	}
	return path, nil
}

func (l *Library) standaloneFeed() (*core.Feed, error) {
	feed, err := l.store.GetOrCreateFeed(core.StandaloneFeedURL, "Library")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve standalone feed: %w", err)
	}
	return feed, nil
}

// ReadUpload is a convenience for handlers receiving multipart uploads.
func ReadUpload(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("upload exceeds size limit")
	}
	return data, nil
}
