// Package feeds fetches and parses RSS/Atom feeds into normalized items,
// honoring a per-domain minimum interval between requests.
package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	fetchTimeout     = 30 * time.Second
	defaultMinGap    = time.Second
	maxFeedBytes     = 10 << 20
	defaultUserAgent = "skim feed reader/1.0"
)

// Item is a normalized feed entry.
type Item struct {
	GUID        string
	Title       string
	URL         string
	SourceURL   string // Publisher URL when the feed supplies one
	Author      string
	Content     string
	PublishedAt *time.Time
	Categories  []string
	ImageURL    string
}

// ParsedFeed is the result of fetching and parsing one feed.
type ParsedFeed struct {
	Title        string
	Description  string
	SiteLink     string
	Items        []Item
	NotModified  bool
	ETag         string
	LastModified string
}

// Parser fetches feeds with per-domain pacing.
type Parser struct {
	client *http.Client
	parser *gofeed.Parser
	minGap time.Duration

	mu        sync.Mutex
	lastFetch map[string]time.Time
}

// NewParser creates a parser with the default 1 s per-domain gap.
func NewParser() *Parser {
	return &Parser{
		client:    &http.Client{Timeout: fetchTimeout},
		parser:    gofeed.NewParser(),
		minGap:    defaultMinGap,
		lastFetch: map[string]time.Time{},
	}
}

// FetchFeed fetches feedURL and parses it. Conditional headers are sent when
// etag/lastModified are non-empty; a 304 yields NotModified without items.
func (p *Parser) FetchFeed(ctx context.Context, feedURL, etag, lastModified string) (*ParsedFeed, error) {
	if err := p.waitForDomain(ctx, feedURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return &ParsedFeed{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	parsed, err := p.ParseBytes(body)
	if err != nil {
		return nil, err
	}
	parsed.ETag = resp.Header.Get("ETag")
	parsed.LastModified = resp.Header.Get("Last-Modified")
	return parsed, nil
}

// ParseBytes parses raw feed bytes.
func (p *Parser) ParseBytes(data []byte) (*ParsedFeed, error) {
	feed, err := p.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	parsed := &ParsedFeed{
		Title:       feed.Title,
		Description: feed.Description,
		SiteLink:    feed.Link,
		Items:       make([]Item, 0, len(feed.Items)),
	}
	for _, item := range feed.Items {
		parsed.Items = append(parsed.Items, normalizeItem(item))
	}
	return parsed, nil
}

func normalizeItem(item *gofeed.Item) Item {
	n := Item{
		GUID:       item.GUID,
		Title:      strings.TrimSpace(item.Title),
		URL:        strings.TrimSpace(item.Link),
		Content:    item.Content,
		Categories: item.Categories,
	}
	if n.GUID == "" {
		n.GUID = n.URL
	}
	if n.Content == "" {
		n.Content = item.Description
	}
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		n.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		n.PublishedAt = &t
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		n.Author = item.Authors[0].Name
	} else if item.Author != nil {
		n.Author = item.Author.Name
	}
	if item.Image != nil {
		n.ImageURL = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				n.ImageURL = enc.URL
				break
			}
		}
	}
	// Some aggregator feeds carry the publisher link in an article extension.
	if ext, ok := item.Extensions["article"]; ok {
		if vals, ok := ext["source_url"]; ok && len(vals) > 0 {
			n.SourceURL = strings.TrimSpace(vals[0].Value)
		}
	}
	return n
}

// waitForDomain sleeps until the per-domain minimum interval has elapsed
// since the last request to this feed's host.
func (p *Parser) waitForDomain(ctx context.Context, feedURL string) error {
	u, err := url.Parse(feedURL)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	host := u.Hostname()

	p.mu.Lock()
	now := time.Now()
	wait := p.minGap - now.Sub(p.lastFetch[host])
	if wait < 0 {
		wait = 0
	}
	p.lastFetch[host] = now.Add(wait)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
