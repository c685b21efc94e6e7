// Package resolver maps aggregator URLs (Techmeme, Google News, Reddit,
// Hacker News) to the underlying publisher URLs worth fetching. Resolution
// failures are soft: the result carries an error string and the caller
// falls back to the original URL.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Aggregator kinds.
const (
	KindTechmeme   = "techmeme"
	KindGoogleNews = "googlenews"
	KindReddit     = "reddit"
	KindHackerNews = "hackernews"
)

// googleNewsPause spaces sequential Google News decodes to stay under their
// rate limits.
const googleNewsPause = 500 * time.Millisecond

// Result is the outcome of resolving one aggregator URL. A missing source
// URL with an empty Err means the item is a self-post with nothing to fetch.
type Result struct {
	OriginalURL string  `json:"original_url"`
	SourceURL   string  `json:"source_url"`
	Confidence  float64 `json:"confidence"`
	Err         string  `json:"error,omitempty"`
}

// aggregator host substrings, checked in order.
var aggregatorHosts = []struct {
	substring string
	kind      string
}{
	{"techmeme.com", KindTechmeme},
	{"news.google.com", KindGoogleNews},
	{"reddit.com", KindReddit},
	{"redd.it", KindReddit},
	{"news.ycombinator.com", KindHackerNews},
}

// Kind identifies which aggregator the URL belongs to, or "" for none.
func Kind(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range aggregatorHosts {
		if strings.Contains(host, a.substring) {
			return a.kind
		}
	}
	return ""
}

// IsAggregator reports whether the URL points at a recognized aggregator.
func IsAggregator(rawURL string) bool { return Kind(rawURL) != "" }

// Resolver decodes aggregator URLs to publisher URLs.
type Resolver struct {
	client *http.Client
}

// New creates a resolver.
func New() *Resolver {
	return &Resolver{client: &http.Client{Timeout: 20 * time.Second}}
}

// Resolve resolves one URL. description is the RSS item description when
// available; Techmeme items often embed the publisher link there, saving a
// page fetch.
func (r *Resolver) Resolve(ctx context.Context, rawURL, description string) Result {
	result := Result{OriginalURL: rawURL}
	switch Kind(rawURL) {
	case KindTechmeme:
		r.resolveTechmeme(ctx, &result, description)
	case KindGoogleNews:
		r.resolveGoogleNews(ctx, &result)
	case KindReddit:
		r.resolveReddit(ctx, &result)
	case KindHackerNews:
		// The feed link already points at the source; a link back into HN
		// is a self-post.
		if !strings.Contains(rawURL, "news.ycombinator.com") {
			result.SourceURL = rawURL
			result.Confidence = 1.0
		}
	}
	return result
}

// ResolveBatch resolves many URLs. Google News URLs are processed
// sequentially with a pause between requests; everything else resolves
// concurrently.
func (r *Resolver) ResolveBatch(ctx context.Context, items map[string]string) map[string]Result {
	results := make(map[string]Result, len(items))
	var mu sync.Mutex
	var wg sync.WaitGroup

	var googleNews []string
	for rawURL, description := range items {
		if Kind(rawURL) == KindGoogleNews {
			googleNews = append(googleNews, rawURL)
			continue
		}
		wg.Add(1)
		go func(rawURL, description string) {
			defer wg.Done()
			result := r.Resolve(ctx, rawURL, description)
			mu.Lock()
			results[rawURL] = result
			mu.Unlock()
		}(rawURL, description)
	}

	for i, rawURL := range googleNews {
		if i > 0 {
			select {
			case <-time.After(googleNewsPause):
			case <-ctx.Done():
			}
		}
		result := r.Resolve(ctx, rawURL, items[rawURL])
		mu.Lock()
		results[rawURL] = result
		mu.Unlock()
	}

	wg.Wait()
	return results
}

func (r *Resolver) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
