package resolver

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resolveReddit finds the external link a Reddit post points at. Self-posts
// resolve to no source URL without an error.
func (r *Resolver) resolveReddit(ctx context.Context, result *Result) {
	oldURL, err := toOldReddit(result.OriginalURL)
	if err != nil {
		result.Err = "bad reddit URL: " + err.Error()
		return
	}

	html, err := r.get(ctx, oldURL)
	if err != nil {
		result.Err = "reddit fetch failed: " + err.Error()
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		result.Err = "reddit parse failed: " + err.Error()
		return
	}

	// Old-layout title link first, then newer-layout selectors.
	selectors := []string{
		"p.title a.title",
		"a.title",
		`a[data-event-action="title"]`,
		`a[slot="full-post-link"]`,
		`shreddit-post a[href]`,
	}
	for _, selector := range selectors {
		link := firstNonRedditLink(doc.Find(selector))
		if link != "" {
			result.SourceURL = link
			result.Confidence = 0.8
			return
		}
	}
	// No external link: a self-post, nothing to resolve.
}

func toOldReddit(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Host = "old.reddit.com"
	u.Scheme = "https"
	return u.String(), nil
}

func firstNonRedditLink(selection *goquery.Selection) string {
	var found string
	selection.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") {
			return true
		}
		if isRedditURL(href) {
			return true
		}
		found = href
		return false
	})
	return found
}

func isRedditURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return strings.Contains(host, "reddit.com") || strings.Contains(host, "redd.it") ||
		strings.Contains(host, "redditmedia.com") || strings.Contains(host, "redditstatic.com")
}
