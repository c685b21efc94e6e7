package sites

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var bloombergBodySelectors = []string{
	`[data-component="body-content"]`,
	`[class*="article-body"]`,
	`[class*="body-content"]`,
	`[class*="story-body"]`,
	`.body-copy`,
}

var bloombergNoisePhrases = []string{
	"sign up for",
	"subscribe to",
	"read more:",
	"most read from bloomberg",
	"terminal readers",
	"click here",
	"follow us",
}

var bloombergNoiseContainers = []string{
	"sidebar", "promo", "newsletter", "recirc", "related", "ad-", "-ad", "toaster",
}

func extractBloomberg(pageURL string, html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bloomberg page: %w", err)
	}

	c := &ExtractedContent{SiteName: "Bloomberg"}
	c.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	c.Author, _ = doc.Find(`meta[name="author"]`).Attr("content")
	c.FeaturedImage, _ = doc.Find(`meta[property="og:image"]`).Attr("content")
	c.PublishedAt = metaPublishedAt(doc)

	// JSON-LD articleBody is the cleanest source when present.
	if body := bloombergJSONLDBody(doc); len(body) >= 200 {
		var b strings.Builder
		for _, paragraph := range strings.Split(body, "\n\n") {
			paragraph = strings.TrimSpace(paragraph)
			if paragraph == "" {
				continue
			}
			b.WriteString("<p>")
			b.WriteString(paragraph)
			b.WriteString("</p>\n")
		}
		c.Content = strings.TrimSpace(b.String())
	}

	if len(c.Content) < 200 {
		for _, selector := range bloombergBodySelectors {
			body := doc.Find(selector).First()
			if body.Length() == 0 {
				continue
			}
			clone := body.Clone()
			clone.Find(`[class*="recirc"], [class*="newsletter"], [class*="terminal"], [class*="promo"], aside`).Remove()
			if content, err := clone.Html(); err == nil && len(content) >= 200 {
				c.Content = strings.TrimSpace(content)
				break
			}
		}
	}

	if len(c.Content) < 200 {
		c.Content = bloombergParagraphSweep(doc)
	}

	finishMetadata(c, doc)
	return c, nil
}

// bloombergJSONLDBody walks the page's JSON-LD blocks, including @graph
// members, looking for an articleBody on article-like types.
func bloombergJSONLDBody(doc *goquery.Document) string {
	var body string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		body = jsonLDArticleBody(raw)
		return body == ""
	})
	return body
}

func jsonLDArticleBody(node any) string {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if body := jsonLDArticleBody(item); body != "" {
				return body
			}
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			if body := jsonLDArticleBody(graph); body != "" {
				return body
			}
		}
		kind, _ := v["@type"].(string)
		switch kind {
		case "NewsArticle", "Article", "WebPage":
			if body, ok := v["articleBody"].(string); ok {
				return body
			}
		}
	}
	return ""
}

// bloombergParagraphSweep aggregates substantial paragraphs, skipping promos
// and sidebar content.
func bloombergParagraphSweep(doc *goquery.Document) string {
	var b strings.Builder
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) < 80 {
			return
		}
		lower := strings.ToLower(text)
		for _, phrase := range bloombergNoisePhrases {
			if strings.Contains(lower, phrase) {
				return
			}
		}
		if inNoiseContainer(s) {
			return
		}
		b.WriteString("<p>")
		b.WriteString(text)
		b.WriteString("</p>\n")
	})
	return strings.TrimSpace(b.String())
}

func inNoiseContainer(s *goquery.Selection) bool {
	for parent := s.Parent(); parent.Length() > 0; parent = parent.Parent() {
		class, _ := parent.Attr("class")
		lower := strings.ToLower(class)
		for _, marker := range bloombergNoiseContainers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}
