package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"skim/internal/logger"
)

const defaultArchiveMaxAge = 30 * 24 * time.Hour

var waybackToolbar = regexp.MustCompile(`(?s)<!-- BEGIN WAYBACK TOOLBAR INSERT -->.*?<!-- END WAYBACK TOOLBAR INSERT -->`)

// Archiver retrieves snapshots of paywalled or blocked pages from public
// archive services.
type Archiver struct {
	client *http.Client
	maxAge time.Duration
}

// NewArchiver creates an archiver. maxAge bounds how old a snapshot may be;
// zero means the 30-day default.
func NewArchiver(maxAge time.Duration) *Archiver {
	if maxAge == 0 {
		maxAge = defaultArchiveMaxAge
	}
	return &Archiver{
		client: &http.Client{Timeout: defaultTimeout},
		maxAge: maxAge,
	}
}

// Snapshot is raw archived HTML plus the service that supplied it.
type Snapshot struct {
	HTML      string
	URL       string // Snapshot URL, not the original
	SourceTag string
}

// Fetch tries archive.today, the Wayback Machine, and Google Cache in order
// and returns the first usable snapshot.
func (a *Archiver) Fetch(ctx context.Context, pageURL string) (*Snapshot, error) {
	attempts := []struct {
		name string
		fn   func(context.Context, string) (*Snapshot, error)
	}{
		{SourceArchiveToday, a.fromArchiveToday},
		{SourceWayback, a.fromWayback},
		{SourceGoogleCache, a.fromGoogleCache},
	}

	var lastErr error
	for _, attempt := range attempts {
		snapshot, err := attempt.fn(ctx, pageURL)
		if err != nil {
			logger.Debug("archive lookup failed", "service", attempt.name, "error", err)
			lastErr = err
			continue
		}
		if snapshot != nil && len(snapshot.HTML) > 0 {
			return snapshot, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no archive snapshot available: %w", lastErr)
	}
	return nil, fmt.Errorf("no archive snapshot available")
}

// fromArchiveToday fetches the newest archive.today snapshot. The
// Memento-Datetime header, when present, enforces the max-age bound.
func (a *Archiver) fromArchiveToday(ctx context.Context, pageURL string) (*Snapshot, error) {
	snapshotURL := "https://archive.ph/newest/" + pageURL
	html, finalURL, header, err := a.get(ctx, snapshotURL)
	if err != nil {
		return nil, err
	}
	if stamp := header.Get("Memento-Datetime"); stamp != "" {
		if t, err := http.ParseTime(stamp); err == nil && time.Since(t) > a.maxAge {
			return nil, fmt.Errorf("archive.today snapshot from %s exceeds max age", t.Format("2006-01-02"))
		}
	}
	if len(html) < 1000 {
		return nil, fmt.Errorf("archive.today returned no usable snapshot")
	}
	return &Snapshot{HTML: html, URL: finalURL, SourceTag: SourceArchiveToday}, nil
}

// fromWayback queries the CDX index for the most recent snapshot and fetches
// it through the id_ raw endpoint so no toolbar is injected.
func (a *Archiver) fromWayback(ctx context.Context, pageURL string) (*Snapshot, error) {
	cdxURL := fmt.Sprintf(
		"https://web.archive.org/cdx/search/cdx?url=%s&output=json&fl=timestamp,original&filter=statuscode:200&limit=-1",
		url.QueryEscape(pageURL))

	body, _, _, err := a.get(ctx, cdxURL)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CDX response: %w", err)
	}
	// First row is the header.
	if len(rows) < 2 || len(rows[len(rows)-1]) < 2 {
		return nil, fmt.Errorf("no wayback snapshots indexed")
	}
	latest := rows[len(rows)-1]
	timestamp, original := latest[0], latest[1]

	taken, err := time.Parse("20060102150405", timestamp)
	if err != nil {
		return nil, fmt.Errorf("bad CDX timestamp %q: %w", timestamp, err)
	}
	if time.Since(taken) > a.maxAge {
		return nil, fmt.Errorf("wayback snapshot from %s exceeds max age", taken.Format("2006-01-02"))
	}

	snapshotURL := fmt.Sprintf("https://web.archive.org/web/%sid_/%s", timestamp, original)
	html, finalURL, _, err := a.get(ctx, snapshotURL)
	if err != nil {
		return nil, err
	}
	html = stripWaybackToolbar(html)
	return &Snapshot{HTML: html, URL: finalURL, SourceTag: SourceWayback}, nil
}

// fromGoogleCache fetches the Google cached copy and strips the cache header
// block.
func (a *Archiver) fromGoogleCache(ctx context.Context, pageURL string) (*Snapshot, error) {
	cacheURL := "https://webcache.googleusercontent.com/search?q=cache:" + url.QueryEscape(pageURL)
	html, finalURL, _, err := a.get(ctx, cacheURL)
	if err != nil {
		return nil, err
	}
	html = stripGoogleCacheHeader(html)
	if len(html) < 1000 {
		return nil, fmt.Errorf("google cache returned no usable copy")
	}
	return &Snapshot{HTML: html, URL: finalURL, SourceTag: SourceGoogleCache}, nil
}

func (a *Archiver) get(ctx context.Context, rawURL string) (body, finalURL string, header http.Header, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create archive request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", "", nil, fmt.Errorf("archive request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("archive service returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to read archive body: %w", err)
	}
	return string(data), resp.Request.URL.String(), resp.Header, nil
}

// stripWaybackToolbar removes the injected toolbar comments and any wayback
// script/css survivors from a snapshot.
func stripWaybackToolbar(html string) string {
	html = waybackToolbar.ReplaceAllString(html, "")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find(`script[src*="web-static.archive.org"], link[href*="web-static.archive.org"], #wm-ipp-base, #wm-ipp-print`).Remove()
	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}

// stripGoogleCacheHeader removes the banner Google prepends to cached pages.
func stripGoogleCacheHeader(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find(`div[id*="google-cache-hdr"]`).Remove()
	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}
