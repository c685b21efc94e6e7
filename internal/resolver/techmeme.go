package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var hrefPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// resolveTechmeme finds the publisher link behind a Techmeme story. The RSS
// description usually carries it; otherwise the page's story cluster does.
func (r *Resolver) resolveTechmeme(ctx context.Context, result *Result, description string) {
	// Cheapest path: the first non-Techmeme link in the item description.
	if description != "" {
		for _, link := range hrefPattern.FindAllString(description, -1) {
			if !strings.Contains(link, "techmeme.com") {
				result.SourceURL = strings.TrimRight(link, ".,)")
				result.Confidence = 0.9
				return
			}
		}
	}

	html, err := r.get(ctx, result.OriginalURL)
	if err != nil {
		result.Err = "techmeme fetch failed: " + err.Error()
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		result.Err = "techmeme parse failed: " + err.Error()
		return
	}

	// A fragment pins the story cluster; its strong anchor is the main link.
	if i := strings.Index(result.OriginalURL, "#"); i >= 0 {
		fragment := result.OriginalURL[i+1:]
		cluster := doc.Find("#" + fragment).First()
		if cluster.Length() > 0 {
			if link := firstExternalLink(cluster.Find("strong a, a.ourh")); link != "" {
				result.SourceURL = link
				result.Confidence = 0.7
				return
			}
		}
	}

	// Fall back to the homepage's main story link.
	if link := firstExternalLink(doc.Find(".clus strong a, strong a.ourh, a.ourh")); link != "" {
		result.SourceURL = link
		result.Confidence = 0.5
		return
	}
	result.Err = "no publisher link found on techmeme page"
}

func firstExternalLink(selection *goquery.Selection) string {
	var found string
	selection.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		if strings.HasPrefix(href, "http") && !strings.Contains(href, "techmeme.com") {
			found = href
			return false
		}
		return true
	})
	return found
}
