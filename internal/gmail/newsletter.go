package gmail

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// X-Mailer values of known newsletter platforms mapped to display names.
var knownMailers = map[string]string{
	"substack":   "Substack",
	"mailchimp":  "Mailchimp",
	"beehiiv":    "beehiiv",
	"convertkit": "ConvertKit",
	"buttondown": "Buttondown",
	"ghost":      "Ghost",
}

var listIDPattern = regexp.MustCompile(`^"?([^"<]+?)"?\s*(?:<[^>]*>)?$`)

// CleanHTML strips tracking and presentational noise from newsletter HTML:
// tracking pixels, preview spans, scripts, empty spacer divs, single-cell
// table wrappers, and footer/unsubscribe blocks.
func CleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, noscript").Remove()

	// Tracking pixels: 1x1 or zero-size images.
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		width, _ := s.Attr("width")
		height, _ := s.Attr("height")
		if width == "1" || height == "1" || width == "0" || height == "0" {
			s.Remove()
		}
	})

	// Preheader/preview text hidden from the mail client viewport.
	doc.Find(`[class*="preview"], [class*="preheader"], [id*="preview"]`).Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if strings.Contains(style, "display:none") || strings.Contains(style, "display: none") ||
			s.Is("span") || s.Is("div") {
			s.Remove()
		}
	})

	// Empty spacer divs.
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) == "" && s.Find("img, a, table").Length() == 0 {
			s.Remove()
		}
	})

	// Footer and unsubscribe blocks.
	doc.Find("footer, [class*='footer'], [class*='unsubscribe'], [id*='unsubscribe']").Remove()
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(strings.ToLower(s.Text()), "unsubscribe") {
			// Drop the whole containing block, not just the link.
			parent := s.Closest("td, div, p")
			if parent.Length() > 0 {
				parent.Remove()
			} else {
				s.Remove()
			}
		}
	})

	// Unwrap single-cell presentational tables.
	for unwrapped := true; unwrapped; {
		unwrapped = false
		doc.Find("table").Each(func(_ int, table *goquery.Selection) {
			cells := table.Find("td")
			if cells.Length() == 1 {
				if inner, err := cells.First().Html(); err == nil {
					table.ReplaceWithHtml(inner)
					unwrapped = true
				}
			}
		})
	}

	body := doc.Find("body")
	if body.Length() > 0 {
		if out, err := body.Html(); err == nil {
			return strings.TrimSpace(out)
		}
	}
	out, err := doc.Html()
	if err != nil {
		return html
	}
	return strings.TrimSpace(out)
}

// DeriveName derives the newsletter's display name: the List-Id header
// first, then known X-Mailer platforms, then in-HTML selectors.
func DeriveName(listID, xMailer, html string) string {
	if listID != "" {
		if m := listIDPattern.FindStringSubmatch(strings.TrimSpace(listID)); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}

	lower := strings.ToLower(xMailer)
	for marker, name := range knownMailers {
		if strings.Contains(lower, marker) {
			return name
		}
	}

	if html != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			for _, selector := range []string{".publication-name", ".newsletter-name", `[class*="brand"]`, "h1"} {
				if name := strings.TrimSpace(doc.Find(selector).First().Text()); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

// DeriveUnsubscribeURL finds the unsubscribe link: the List-Unsubscribe
// header (unwrapping <...> and preferring the http(s) variant over mailto),
// then any HTML link whose text or href mentions unsubscribing.
func DeriveUnsubscribeURL(listUnsubscribe, html string) string {
	if listUnsubscribe != "" {
		var mailto string
		for _, part := range strings.Split(listUnsubscribe, ",") {
			part = strings.TrimSpace(part)
			part = strings.TrimPrefix(part, "<")
			part = strings.TrimSuffix(part, ">")
			if strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://") {
				return part
			}
			if strings.HasPrefix(part, "mailto:") && mailto == "" {
				mailto = part
			}
		}
		if mailto != "" {
			return mailto
		}
	}

	if html != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			var found string
			doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				href, _ := s.Attr("href")
				if strings.Contains(strings.ToLower(s.Text()), "unsubscribe") ||
					strings.Contains(strings.ToLower(href), "unsubscribe") {
					found = href
					return false
				}
				return true
			})
			return found
		}
	}
	return ""
}
