package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func extractWikipedia(pageURL string, html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse wikipedia page: %w", err)
	}

	c := &ExtractedContent{SiteName: "Wikipedia"}

	c.Title = strings.TrimSpace(doc.Find("#firstHeading").Text())
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("title").Text())
	}

	body := doc.Find("#mw-content-text").First()
	body.Find(".reflist, .reference, .navbox, .mw-editsection, .hatnote, .infobox, .sidebar, .metadata, #toc").Remove()
	if content, err := body.Html(); err == nil {
		c.Content = strings.TrimSpace(content)
	}

	doc.Find("#mw-normal-catlinks ul li a").Each(func(_ int, s *goquery.Selection) {
		if category := strings.TrimSpace(s.Text()); category != "" {
			c.Categories = append(c.Categories, category)
		}
	})

	finishMetadata(c, doc)
	return c, nil
}
