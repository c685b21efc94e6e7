package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func extractSubstack(pageURL string, html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse substack page: %w", err)
	}

	c := &ExtractedContent{}

	c.Title = strings.TrimSpace(doc.Find(".post-title").First().Text())
	if c.Title == "" {
		c.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}
	c.SiteName = strings.TrimSpace(doc.Find(".publication-name").First().Text())
	if c.SiteName == "" {
		c.SiteName, _ = doc.Find(`meta[property="og:site_name"]`).Attr("content")
	}
	c.Author, _ = doc.Find(`meta[name="author"]`).Attr("content")
	c.FeaturedImage, _ = doc.Find(`meta[property="og:image"]`).Attr("content")
	c.PublishedAt = metaPublishedAt(doc)

	if strings.Contains(html, "paywall") && doc.Find(".paywall, .paywall-cta").Length() > 0 {
		c.Paywalled = true
	}

	body := doc.Find(".available-content, .body.markup").First()
	body.Find(".subscribe-widget, .subscription-widget-wrap, .share-dialog, .post-footer, .captioned-button-wrap").Remove()
	body.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			c.Images = append(c.Images, src)
		}
	})
	if content, err := body.Html(); err == nil {
		c.Content = strings.TrimSpace(content)
	}

	finishMetadata(c, doc)
	return c, nil
}
