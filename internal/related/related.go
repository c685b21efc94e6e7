// Package related finds related reading for an article through the Exa
// neural search API. It is optional enrichment: a missing API key disables
// it without affecting ingestion.
package related

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skim/internal/core"
	"skim/internal/llm"
	"skim/internal/logger"
)

const (
	exaSearchURL    = "https://api.exa.ai/search"
	snippetMaxChars = 200
	cacheTTL        = 24 * time.Hour
	perDomainCap    = 2
)

// Link is one related result.
type Link struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Snippet       string  `json:"snippet"`
	Domain        string  `json:"domain"`
	PublishedDate string  `json:"published_date"`
	Score         float64 `json:"score"`
}

// Cache is the subset of the tiered cache the finder needs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// Finder looks up related links.
type Finder struct {
	apiKey    string
	client    *http.Client
	provider  llm.Provider
	cache     Cache
	searchURL string
}

// NewFinder creates a finder. provider may be nil, skipping keyword
// extraction; cache may be nil, disabling result and keyword caching.
func NewFinder(apiKey string, provider llm.Provider, cache Cache) *Finder {
	return &Finder{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 20 * time.Second},
		provider:  provider,
		cache:     cache,
		searchURL: exaSearchURL,
	}
}

// Enabled reports whether the finder has an API key.
func (f *Finder) Enabled() bool { return f.apiKey != "" }

// Find returns up to n related links for the article. Results are cached
// for 24 hours per query.
func (f *Finder) Find(ctx context.Context, article *core.Article, n int) ([]Link, error) {
	if !f.Enabled() {
		return nil, fmt.Errorf("related links are not configured")
	}
	if article == nil || article.Title == "" {
		return nil, fmt.Errorf("article has no title to search with")
	}
	if n <= 0 {
		n = 5
	}

	query := f.buildQuery(ctx, article)
	cacheKey := queryCacheKey(query)
	if f.cache != nil {
		if data, ok := f.cache.Get(cacheKey); ok {
			var cached []Link
			if err := json.Unmarshal(data, &cached); err == nil {
				return capLinks(cached, n), nil
			}
		}
	}

	// Overfetch so dedup and the per-domain cap still leave n results.
	candidates, err := f.search(ctx, query, n+10)
	if err != nil {
		return nil, err
	}
	links := filterCandidates(candidates, article, n)

	if f.cache != nil {
		if data, err := json.Marshal(links); err == nil {
			if err := f.cache.Set(cacheKey, data, cacheTTL); err != nil {
				logger.Warn("failed to cache related links", "url", article.URL, "error", err)
			}
		}
	}
	return links, nil
}

// buildQuery prefers title plus the first two key points, then title plus
// extracted concept keywords, then the bare title.
func (f *Finder) buildQuery(ctx context.Context, article *core.Article) string {
	if len(article.KeyPoints) > 0 {
		points := article.KeyPoints
		if len(points) > 2 {
			points = points[:2]
		}
		return article.Title + " " + strings.Join(points, " ")
	}
	if keywords := f.extractKeywords(ctx, article); len(keywords) > 0 {
		return article.Title + " " + strings.Join(keywords, " ")
	}
	return article.Title
}

// extractKeywords asks the model for 3-5 concept keywords, cached per
// article URL. Failures degrade to an empty list.
func (f *Finder) extractKeywords(ctx context.Context, article *core.Article) []string {
	if f.provider == nil || article.Content == "" {
		return nil
	}

	cacheKey := "keywords:" + article.URL
	if f.cache != nil && article.URL != "" {
		if data, ok := f.cache.Get(cacheKey); ok {
			var cached []string
			if err := json.Unmarshal(data, &cached); err == nil && len(cached) > 0 {
				return cached
			}
		}
	}

	content := article.Content
	if len(content) > 4000 {
		content = content[:4000]
	}
	resp, err := f.provider.Complete(ctx, llm.Request{
		UserPrompt: keywordPrompt + fmt.Sprintf("Title: %s\n\n%s", article.Title, content),
		Tier:       llm.TierFast,
		MaxTokens:  256,
		JSONMode:   true,
	})
	if err != nil {
		logger.Warn("keyword extraction failed", "url", article.URL, "error", err)
		return nil
	}
	keywords := parseKeywords(resp.Text)
	if len(keywords) == 0 {
		return nil
	}

	if f.cache != nil && article.URL != "" {
		if data, err := json.Marshal(keywords); err == nil {
			_ = f.cache.Set(cacheKey, data, 0)
		}
	}
	return keywords
}

const keywordPrompt = `Extract 3-5 concept keywords that capture what this article is about. Respond with JSON: {"keywords": ["...", "..."]}

`

func parseKeywords(text string) []string {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil
	}
	var keywords []string
	for _, k := range parsed.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

type exaRequest struct {
	Query      string      `json:"query"`
	NumResults int         `json:"numResults"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Text exaTextOptions `json:"text"`
}

type exaTextOptions struct {
	MaxCharacters int `json:"maxCharacters"`
}

type exaResult struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	PublishedDate string  `json:"publishedDate"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
}

func (f *Finder) search(ctx context.Context, query string, numResults int) ([]exaResult, error) {
	body, err := json.Marshal(exaRequest{
		Query:      query,
		NumResults: numResults,
		Contents:   exaContents{Text: exaTextOptions{MaxCharacters: 500}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("related search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("related search returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	var parsed struct {
		Results []exaResult `json:"results"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return parsed.Results, nil
}

// filterCandidates drops the article itself, its domain, duplicate titles,
// and anything beyond two hits per domain, then caps at n.
func filterCandidates(candidates []exaResult, article *core.Article, n int) []Link {
	ownDomain := domainOf(article.URL)
	ownTitle := strings.ToLower(strings.TrimSpace(article.Title))

	seenTitles := map[string]bool{}
	domainCounts := map[string]int{}
	links := make([]Link, 0, n)

	for _, c := range candidates {
		if c.URL == "" || c.URL == article.URL {
			continue
		}
		domain := domainOf(c.URL)
		if domain == "" || (ownDomain != "" && domain == ownDomain) {
			continue
		}
		title := strings.ToLower(strings.TrimSpace(c.Title))
		if title == "" || title == ownTitle || seenTitles[title] {
			continue
		}
		if domainCounts[domain] >= perDomainCap {
			continue
		}
		seenTitles[title] = true
		domainCounts[domain]++

		links = append(links, Link{
			URL:           c.URL,
			Title:         strings.TrimSpace(c.Title),
			Snippet:       makeSnippet(c.Text),
			Domain:        domain,
			PublishedDate: c.PublishedDate,
			Score:         c.Score,
		})
		if len(links) == n {
			break
		}
	}
	return links
}

func makeSnippet(text string) string {
	snippet := strings.Join(strings.Fields(text), " ")
	if len(snippet) > snippetMaxChars {
		snippet = snippet[:snippetMaxChars]
	}
	return snippet
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func capLinks(links []Link, n int) []Link {
	if len(links) > n {
		return links[:n]
	}
	return links
}

// queryCacheKey normalizes the query (lower-cased, whitespace-collapsed)
// and keys on a short hash of it.
func queryCacheKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "related:" + hex.EncodeToString(sum[:])[:16]
}
