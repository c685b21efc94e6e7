package sites

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Medium-hosted publications that keep their own domains.
var mediumHosts = []string{
	"medium.com",
	"towardsdatascience.com",
	"betterprogramming.pub",
	"levelup.gitconnected.com",
	"uxdesign.cc",
	"itnext.io",
}

var mediumReadingTime = regexp.MustCompile(`(\d+)\s*min read`)

func extractMedium(pageURL string, html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse medium page: %w", err)
	}

	c := &ExtractedContent{SiteName: "Medium"}

	// Member-only stories carry a metered-paywall marker in page metadata.
	if doc.Find(`meta[name="medium:isLockedPreviewOnly"][content="true"]`).Length() > 0 ||
		strings.Contains(html, `"isLockedPreviewOnly":true`) ||
		strings.Contains(html, "Member-only story") {
		c.Paywalled = true
	}

	c.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	if c.Title == "" {
		c.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}
	c.Author, _ = doc.Find(`meta[name="author"]`).Attr("content")
	c.FeaturedImage, _ = doc.Find(`meta[property="og:image"]`).Attr("content")
	c.PublishedAt = metaPublishedAt(doc)

	if m := mediumReadingTime.FindStringSubmatch(doc.Text()); m != nil {
		fmt.Sscanf(m[1], "%d", &c.ReadingTime)
	}

	article := doc.Find("article").First()
	if article.Length() == 0 {
		article = doc.Find("section").First()
	}
	article.Find(`[data-testid="headerSocialShareButton"], [data-testid="responses"], [data-testid="audioPlayButton"], .speechify-ignore, footer`).Remove()
	if body, err := article.Html(); err == nil {
		c.Content = strings.TrimSpace(body)
	}

	finishMetadata(c, doc)
	return c, nil
}
