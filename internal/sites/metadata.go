package sites

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const wordsPerMinute = 225

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// languageAliases maps shorthand class-name languages to canonical names.
var languageAliases = map[string]string{
	"js":    "javascript",
	"ts":    "typescript",
	"py":    "python",
	"rb":    "ruby",
	"yml":   "yaml",
	"sh":    "bash",
	"shell": "bash",
}

var codeClassPrefixes = []string{"language-", "lang-", "highlight-", "hljs-"}

// finishMetadata fills word count, reading time, and code-block metadata from
// the extracted HTML. Extractors call it after assembling Content.
func finishMetadata(c *ExtractedContent, doc *goquery.Document) {
	if c.WordCount == 0 {
		c.WordCount = countWords(c.Content)
	}
	if c.ReadingTime == 0 {
		c.ReadingTime = ReadingMinutes(c.WordCount)
	}
	if doc != nil {
		langs := detectCodeLanguages(doc)
		if len(langs) > 0 || doc.Find("pre, code").Length() > 0 {
			c.HasCodeBlocks = doc.Find("pre").Length() > 0
		}
		if len(c.CodeLanguages) == 0 {
			c.CodeLanguages = langs
		}
	}
}

// Metadata is text-derived metadata over an HTML fragment.
type Metadata struct {
	WordCount     int
	ReadingTime   int
	HasCodeBlocks bool
	CodeLanguages []string
}

// Analyze computes word count, reading time, and code-block metadata for an
// HTML fragment. Generic extractors use it so all paths report metadata the
// same way.
func Analyze(html string) Metadata {
	m := Metadata{WordCount: countWords(html)}
	m.ReadingTime = ReadingMinutes(m.WordCount)
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		m.HasCodeBlocks = doc.Find("pre").Length() > 0
		m.CodeLanguages = detectCodeLanguages(doc)
	}
	return m
}

// countWords counts words in the text projection of an HTML fragment.
func countWords(html string) int {
	text := tagPattern.ReplaceAllString(html, " ")
	return len(strings.Fields(text))
}

// ReadingMinutes estimates reading time at 225 words per minute, never
// reporting less than one minute.
func ReadingMinutes(wordCount int) int {
	minutes := int(math.Round(float64(wordCount) / wordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// detectCodeLanguages inspects code/pre class names and data-language
// attributes and returns normalized, deduplicated language names.
func detectCodeLanguages(doc *goquery.Document) []string {
	seen := map[string]bool{}
	doc.Find("pre, code").Each(func(_ int, s *goquery.Selection) {
		if class, ok := s.Attr("class"); ok {
			for _, name := range strings.Fields(class) {
				for _, prefix := range codeClassPrefixes {
					if strings.HasPrefix(name, prefix) {
						if lang := normalizeLanguage(strings.TrimPrefix(name, prefix)); lang != "" {
							seen[lang] = true
						}
					}
				}
			}
		}
		if attr, ok := s.Attr("data-language"); ok {
			if lang := normalizeLanguage(attr); lang != "" {
				seen[lang] = true
			}
		}
	})

	if len(seen) == 0 {
		return nil
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// metaPublishedAt reads a publication timestamp from the usual meta tags.
func metaPublishedAt(doc *goquery.Document) *time.Time {
	candidates := []string{
		`meta[property="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
		`meta[name="publish-date"]`,
	}
	for _, sel := range candidates {
		if value, ok := doc.Find(sel).Attr("content"); ok {
			if t := parseTimestamp(value); t != nil {
				return t
			}
		}
	}
	if value, ok := doc.Find("time[datetime]").Attr("datetime"); ok {
		return parseTimestamp(value)
	}
	return nil
}

func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func normalizeLanguage(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if lang == "" || lang == "none" || lang == "plaintext" || lang == "text" {
		return ""
	}
	if canonical, ok := languageAliases[lang]; ok {
		return canonical
	}
	return lang
}
