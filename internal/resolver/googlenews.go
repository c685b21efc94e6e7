package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const batchExecuteURL = "https://news.google.com/_/DotsSplashUi/data/batchexecute"

var embeddedURLPattern = regexp.MustCompile(`https?://[^\x00-\x20"\\]+`)

// resolveGoogleNews decodes a news.google.com article URL to its publisher
// URL: first via Google's batchexecute endpoint, then by decoding the
// article id as base64. A URL still pointing at Google News is never
// returned.
func (r *Resolver) resolveGoogleNews(ctx context.Context, result *Result) {
	articleID := googleNewsArticleID(result.OriginalURL)
	if articleID == "" {
		result.Err = "no article id in google news URL"
		return
	}

	if source, err := r.decodeViaAPI(ctx, result.OriginalURL, articleID); err == nil && acceptableGoogleNewsURL(source) {
		result.SourceURL = source
		result.Confidence = 0.9
		return
	}

	if source := decodeArticleIDBase64(articleID); acceptableGoogleNewsURL(source) {
		result.SourceURL = source
		result.Confidence = 0.6
		return
	}
	result.Err = "failed to decode google news article id"
}

// googleNewsArticleID pulls the opaque article id segment out of the URL
// path (".../articles/<id>" or ".../rss/articles/<id>").
func googleNewsArticleID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		if (segment == "articles" || segment == "read") && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

// decodeViaAPI reads the signature and timestamp attributes Google embeds in
// the article page and replays them against the batchexecute endpoint.
func (r *Resolver) decodeViaAPI(ctx context.Context, articleURL, articleID string) (string, error) {
	html, err := r.get(ctx, articleURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse article page: %w", err)
	}

	element := doc.Find("c-wiz div[data-n-a-sg][data-n-a-ts]").First()
	signature, _ := element.Attr("data-n-a-sg")
	timestamp, _ := element.Attr("data-n-a-ts")
	if signature == "" || timestamp == "" {
		return "", fmt.Errorf("article page carries no decode attributes")
	}

	payload := fmt.Sprintf(
		`[[["Fbv4je","[\"garturlreq\",[[\"en-US\",\"US\",[\"FINANCE_TOP_INDICES\",\"WEB_TEST_1_0_0\"],null,null,1,1,\"US:en\",null,180,null,null,null,null,null,0,null,null,[1608992183,723341000]],\"en-US\",\"US\",1,[2,3,4,8],1,0,\"655000234\",0,0,null,0],\"%s\",%s,\"%s\"]",null,"generic"]]]`,
		articleID, timestamp, signature)
	form := url.Values{"f.req": {payload}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, batchExecuteURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("batchexecute request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return extractBatchExecuteURL(string(body))
}

// extractBatchExecuteURL digs the publisher URL out of the batchexecute
// envelope: an anti-XSSI prefix, then nested JSON whose inner payload is
// itself a JSON string containing the URL.
func extractBatchExecuteURL(body string) (string, error) {
	body = strings.TrimPrefix(strings.TrimSpace(body), ")]}'")

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[[") {
			continue
		}
		var envelope []any
		if err := json.Unmarshal([]byte(line), &envelope); err != nil {
			continue
		}
		if inner := findNestedURL(envelope); inner != "" {
			return unescapeURL(inner), nil
		}
	}
	return "", fmt.Errorf("no URL in batchexecute response")
}

// findNestedURL walks the envelope, decoding embedded JSON strings, until a
// non-Google http(s) URL turns up.
func findNestedURL(node any) string {
	switch v := node.(type) {
	case string:
		if strings.HasPrefix(v, "[") {
			var nested any
			if err := json.Unmarshal([]byte(v), &nested); err == nil {
				return findNestedURL(nested)
			}
		}
		if m := embeddedURLPattern.FindString(v); m != "" && acceptableGoogleNewsURL(m) {
			return m
		}
	case []any:
		for _, item := range v {
			if found := findNestedURL(item); found != "" {
				return found
			}
		}
	}
	return ""
}

// unescapeURL undoes JSON string escaping and percent-encoding left over
// from the nested payloads.
func unescapeURL(raw string) string {
	raw = strings.ReplaceAll(raw, `\/`, "/")
	raw = strings.ReplaceAll(raw, `\u003d`, "=")
	raw = strings.ReplaceAll(raw, `\u0026`, "&")
	if unescaped, err := url.QueryUnescape(raw); err == nil && strings.HasPrefix(unescaped, "http") {
		return unescaped
	}
	return raw
}

// decodeArticleIDBase64 decodes the article id as base64 (padding and
// URL-safe variants) and searches the bytes for an embedded URL.
func decodeArticleIDBase64(articleID string) string {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, encoding := range encodings {
		decoded, err := encoding.DecodeString(articleID)
		if err != nil {
			continue
		}
		if m := embeddedURLPattern.Find(decoded); m != nil {
			return string(m)
		}
	}
	return ""
}

// acceptableGoogleNewsURL rejects empty results and anything still inside
// Google's properties.
func acceptableGoogleNewsURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return !strings.Contains(host, "news.google.com") && !strings.Contains(host, "google.com")
}
