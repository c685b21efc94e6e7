package sites

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// githubPageKind classifies a GitHub URL by its path segments.
func githubPageKind(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 {
		return "repository"
	}
	switch segments[2] {
	case "releases":
		return "release"
	case "discussions":
		return "discussion"
	case "issues":
		return "issue"
	case "pull":
		return "pull-request"
	case "blob":
		return "file"
	default:
		return "repository"
	}
}

func extractGitHub(pageURL string, html string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse github page: %w", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github URL: %w", err)
	}

	c := &ExtractedContent{}
	kind := githubPageKind(u.Path)
	c.Tags = []string{kind}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) >= 2 {
		c.SiteName = segments[0] + "/" + segments[1]
	} else {
		c.SiteName = "GitHub"
	}

	c.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("title").Text())
	}
	c.FeaturedImage, _ = doc.Find(`meta[property="og:image"]`).Attr("content")

	var container *goquery.Selection
	switch kind {
	case "issue", "pull-request", "discussion":
		container = doc.Find(".comment-body").First()
	case "release":
		container = doc.Find(".markdown-body").First()
	default:
		// Repository and file pages render their README / content body
		// as a markdown-body block.
		container = doc.Find("article.markdown-body, .markdown-body").First()
	}
	if container.Length() > 0 {
		if content, err := container.Html(); err == nil {
			c.Content = strings.TrimSpace(content)
		}
	}

	finishMetadata(c, doc)
	return c, nil
}
