package fetch

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Containers tried in order when no semantic article element exists.
var containerSelectors = []string{
	"article",
	`[class*="article"], [class*="post-content"], [class*="entry-content"], [class*="story"], [class*="post"]`,
	`[role="main"]`,
	"main",
	`[class*="content"], [class*="body"]`,
	"body",
}

const boilerplateSelectors = `script, style, noscript, iframe, nav, header, footer, aside, form,
	[class*="nav"], [class*="menu"], [class*="sidebar"], [class*="footer"], [class*="header"],
	[class*="comment"], [class*="related"], [class*="share"], [class*="social"],
	[class*="advert"], [class*="promo"], [id*="comments"], [id*="sidebar"]`

type heuristicResult struct {
	Title       string
	Author      string
	Content     string
	PublishedAt *time.Time
}

// extractHeuristic is the last-resort extractor: strip obvious boilerplate,
// find the most plausible content container, and keep its block elements.
func extractHeuristic(html string) heuristicResult {
	var r heuristicResult
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return r
	}

	r.Title = heuristicTitle(doc)
	r.Author = heuristicAuthor(doc)
	r.PublishedAt = heuristicPublishedAt(doc)

	doc.Find(boilerplateSelectors).Remove()

	for _, selector := range containerSelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		var b strings.Builder
		container.Find("p, h1, h2, h3, h4, h5, h6, ul, ol, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return
			}
			tag := goquery.NodeName(s)
			b.WriteString("<" + tag + ">")
			b.WriteString(text)
			b.WriteString("</" + tag + ">\n")
		})
		if b.Len() > 0 {
			r.Content = strings.TrimSpace(b.String())
			break
		}
	}
	return r
}

// heuristicTitle reads <title>, dropping a trailing site-name segment, then
// falls back to the first h1 and og:title.
func heuristicTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" {
		for _, sep := range []string{" | ", " - ", " – ", " — "} {
			if i := strings.LastIndex(title, sep); i > 0 {
				title = title[:i]
			}
		}
		return strings.TrimSpace(title)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	og, _ := doc.Find(`meta[property="og:title"]`).Attr("content")
	return strings.TrimSpace(og)
}

func heuristicAuthor(doc *goquery.Document) string {
	if author, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok {
		return strings.TrimSpace(author)
	}
	if author, ok := doc.Find(`meta[property="article:author"]`).Attr("content"); ok {
		return strings.TrimSpace(author)
	}
	author := doc.Find(`[class*="author"], [class*="byline"], [rel="author"]`).First().Text()
	return strings.TrimSpace(author)
}

func heuristicPublishedAt(doc *goquery.Document) *time.Time {
	if value, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		if t := parsePageTime(value); t != nil {
			return t
		}
	}
	if value, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return parsePageTime(value)
	}
	return nil
}

func parsePageTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
