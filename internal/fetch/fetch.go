// Package fetch retrieves article pages and extracts readable content,
// with SSRF validation up front and JS-render and archive fallbacks for
// pages that resist a plain GET.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"skim/internal/sites"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultMinContentLength = 500
	maxBodyBytes            = 20 << 20

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// Source tags identifying how a result was obtained.
const (
	SourceDirect       = "direct"
	SourcePaywalled    = "paywalled"
	SourceJSRender     = "js_render"
	SourceArchiveToday = "archive_today"
	SourceWayback      = "wayback"
	SourceGoogleCache  = "google_cache"
)

// FallbackArchive marks results obtained through any archive service; the
// specific service lands in ArchiveSource.
const FallbackArchive = "archive"

// Result is the outcome of fetching and extracting one page.
type Result struct {
	URL         string     `json:"url"`
	FinalURL    string     `json:"final_url"` // After redirects
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	PublishedAt *time.Time `json:"published_at"`
	SourceTag   string     `json:"source_tag"`
	ContentHash string     `json:"content_hash"`

	WordCount      int      `json:"word_count"`
	ReadingMinutes int      `json:"reading_minutes"`
	SiteName       string   `json:"site_name"`
	Extractor      string   `json:"extractor"`
	ImageURL       string   `json:"image_url"`
	Images         []string `json:"images"`
	Tags           []string `json:"tags"`
	HasCodeBlocks  bool     `json:"has_code_blocks"`
	CodeLanguages  []string `json:"code_languages"`
	Paywalled      bool     `json:"paywalled"`

	FallbackUsed  string `json:"fallback_used"`  // Set by the enhanced fetcher
	ArchiveSource string `json:"archive_source"` // Archive service for archive fallbacks
	FetchError    string `json:"fetch_error"`    // Original error carried through fallbacks
}

// Options configures the core fetcher.
type Options struct {
	Timeout          time.Duration
	MinContentLength int
	UserAgent        string
}

// DefaultOptions returns the standard fetcher configuration.
func DefaultOptions() Options {
	return Options{
		Timeout:          defaultTimeout,
		MinContentLength: defaultMinContentLength,
		UserAgent:        browserUserAgent,
	}
}

// Fetcher retrieves pages over plain HTTP and extracts readable content.
type Fetcher struct {
	client           *http.Client
	minContentLength int
	userAgent        string
}

// New creates a fetcher.
func New(options Options) *Fetcher {
	if options.Timeout == 0 {
		options.Timeout = defaultTimeout
	}
	if options.MinContentLength == 0 {
		options.MinContentLength = defaultMinContentLength
	}
	if options.UserAgent == "" {
		options.UserAgent = browserUserAgent
	}
	return &Fetcher{
		client:           &http.Client{Timeout: options.Timeout},
		minContentLength: options.MinContentLength,
		userAgent:        options.UserAgent,
	}
}

// Fetch validates the URL, retrieves the page, and extracts content. A
// paywalled page is a tagged result, not an error.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if err := ValidateURL(pageURL); err != nil {
		return nil, fmt.Errorf("URL rejected: %w", err)
	}

	html, finalURL, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	result, err := f.Extract(pageURL, html)
	if err != nil {
		return nil, err
	}
	result.FinalURL = finalURL
	f.applyPaywallHeuristic(result, finalURL)
	return result, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) (html, finalURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to read page body: %w", err)
	}
	return string(body), resp.Request.URL.String(), nil
}

// Extract runs the extractor dispatch over already-fetched HTML:
// site-specific handler, then reader mode, then the heuristic fallback.
func (f *Fetcher) Extract(pageURL string, html string) (*Result, error) {
	result := &Result{URL: pageURL, SourceTag: SourceDirect}

	if extracted, err := sites.Extract(pageURL, html); err == nil && extracted != nil {
		if len(extracted.Content) >= f.minContentLength || extracted.Paywalled {
			fillFromSite(result, extracted)
			result.ContentHash = HashContent(result.Content)
			return result, nil
		}
	}

	if article, err := f.readerMode(pageURL, html); err == nil &&
		len(article.Content) >= f.minContentLength {
		result.Title = article.Title
		result.Author = article.Author
		result.Content = article.Content
		result.PublishedAt = article.PublishedAt
		result.SiteName = article.SiteName
		result.ImageURL = article.ImageURL
		result.Extractor = "readability"
		finishResult(result)
		return result, nil
	}

	heuristic := extractHeuristic(html)
	result.Title = heuristic.Title
	result.Author = heuristic.Author
	result.Content = heuristic.Content
	result.PublishedAt = heuristic.PublishedAt
	result.Extractor = "heuristic"
	finishResult(result)
	return result, nil
}

type readerArticle struct {
	Title       string
	Author      string
	Content     string
	PublishedAt *time.Time
	SiteName    string
	ImageURL    string
}

func (f *Fetcher) readerMode(pageURL string, html string) (*readerArticle, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return nil, fmt.Errorf("reader-mode extraction failed: %w", err)
	}
	return &readerArticle{
		Title:       article.Title,
		Author:      article.Byline,
		Content:     article.Content,
		PublishedAt: article.PublishedTime,
		SiteName:    article.SiteName,
		ImageURL:    article.Image,
	}, nil
}

func fillFromSite(result *Result, c *sites.ExtractedContent) {
	result.Title = c.Title
	result.Author = c.Author
	result.Content = c.Content
	result.PublishedAt = c.PublishedAt
	result.SiteName = c.SiteName
	result.Extractor = c.Extractor
	result.WordCount = c.WordCount
	result.ReadingMinutes = c.ReadingTime
	result.ImageURL = c.FeaturedImage
	result.Images = c.Images
	result.Tags = append(c.Categories, c.Tags...)
	result.HasCodeBlocks = c.HasCodeBlocks
	result.CodeLanguages = c.CodeLanguages
	result.Paywalled = c.Paywalled
	if c.Paywalled {
		result.SourceTag = SourcePaywalled
	}
}

// finishResult computes text metadata and the content hash for results from
// the generic extractors.
func finishResult(result *Result) {
	m := sites.Analyze(result.Content)
	result.WordCount = m.WordCount
	result.ReadingMinutes = m.ReadingTime
	result.HasCodeBlocks = m.HasCodeBlocks
	result.CodeLanguages = m.CodeLanguages
	result.ContentHash = HashContent(result.Content)
}

func (f *Fetcher) applyPaywallHeuristic(result *Result, finalURL string) {
	if result.Paywalled {
		return
	}
	host := ""
	if u, err := url.Parse(finalURL); err == nil {
		host = u.Hostname()
	}
	if looksPaywalled(host, result.Content) || looksBotDetection(result.Content) {
		result.Paywalled = true
		result.SourceTag = SourcePaywalled
	}
}

// HashContent returns a short stable hash for cross-feed deduplication.
func HashContent(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}
