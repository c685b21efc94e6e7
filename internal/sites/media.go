package sites

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// youTubeVideoID pulls the video id out of watch, shorts, and youtu.be URLs.
func youTubeVideoID(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	if id := u.Query().Get("v"); id != "" {
		return id
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed") {
		return segments[1]
	}
	return ""
}

func extractYouTube(pageURL string, html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse youtube page: %w", err)
	}

	c := &ExtractedContent{SiteName: "YouTube", HasVideo: true}

	c.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("title").Text())
	}
	c.Author, _ = doc.Find(`link[itemprop="name"]`).Attr("content")
	if c.Author == "" {
		c.Author, _ = doc.Find(`meta[itemprop="author"]`).Attr("content")
	}
	if published, ok := doc.Find(`meta[itemprop="datePublished"]`).Attr("content"); ok {
		c.PublishedAt = parseTimestamp(published)
	}
	if description, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		c.Content = description
	}

	id := youTubeVideoID(pageURL)
	c.FeaturedImage, _ = doc.Find(`meta[property="og:image"]`).Attr("content")
	if c.FeaturedImage == "" && id != "" {
		c.FeaturedImage = fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", id)
	}
	if id != "" {
		c.EmbedURL = "https://www.youtube.com/embed/" + id
	}

	finishMetadata(c, doc)
	return c, nil
}

func extractTwitter(pageURL string, html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse twitter page: %w", err)
	}

	// Tweets render client-side; Open Graph tags are the best we get
	// from static HTML.
	c := &ExtractedContent{SiteName: "Twitter/X"}
	c.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	c.Content, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
	c.FeaturedImage, _ = doc.Find(`meta[property="og:image"]`).Attr("content")

	if u, err := url.Parse(pageURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) > 0 && segments[0] != "" {
			c.Author = "@" + segments[0]
		}
	}

	finishMetadata(c, doc)
	return c, nil
}
