// Package sites holds site-specific content extractors. Each extractor
// declares the host suffixes it handles and converts already-fetched HTML
// into structured content without touching the network.
package sites

import (
	"net/url"
	"strings"
	"time"
)

// ExtractedContent is the structured result of a site-specific extraction.
type ExtractedContent struct {
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Content       string     `json:"content"` // Cleaned HTML body
	PublishedAt   *time.Time `json:"published_at"`
	SiteName      string     `json:"site_name"`
	Extractor     string     `json:"extractor"`
	WordCount     int        `json:"word_count"`
	ReadingTime   int        `json:"reading_time"` // Minutes
	Categories    []string   `json:"categories"`
	Tags          []string   `json:"tags"`
	FeaturedImage string     `json:"featured_image"`
	Images        []string   `json:"images"`
	Paywalled     bool       `json:"paywalled"`
	HasCodeBlocks bool       `json:"has_code_blocks"`
	CodeLanguages []string   `json:"code_languages"`
	HasVideo      bool       `json:"has_video"`
	EmbedURL      string     `json:"embed_url"`
}

type extractorFunc func(pageURL string, html string) (*ExtractedContent, error)

type siteExtractor struct {
	name  string
	hosts []string
	fn    extractorFunc
}

// Registration order matters: the first matching handler wins.
var registry = []siteExtractor{
	{"medium", mediumHosts, extractMedium},
	{"substack", []string{"substack.com"}, extractSubstack},
	{"github", []string{"github.com"}, extractGitHub},
	{"youtube", []string{"youtube.com", "youtu.be"}, extractYouTube},
	{"twitter", []string{"twitter.com", "x.com"}, extractTwitter},
	{"wikipedia", []string{"wikipedia.org"}, extractWikipedia},
	{"bloomberg", []string{"bloomberg.com"}, extractBloomberg},
}

// Lookup returns the name of the extractor responsible for the URL's host,
// or "" when no extractor claims it.
func Lookup(pageURL string) string {
	name, _ := lookup(pageURL)
	return name
}

func lookup(pageURL string) (string, extractorFunc) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", nil
	}
	host := strings.ToLower(u.Hostname())
	for _, e := range registry {
		for _, h := range e.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return e.name, e.fn
			}
		}
	}
	return "", nil
}

// Extract dispatches to the matching site extractor. It returns (nil, nil)
// when no extractor claims the host.
func Extract(pageURL string, html string) (*ExtractedContent, error) {
	name, fn := lookup(pageURL)
	if fn == nil {
		return nil, nil
	}
	content, err := fn(pageURL, html)
	if err != nil {
		return nil, err
	}
	if content != nil && content.Extractor == "" {
		content.Extractor = name
	}
	return content, nil
}
