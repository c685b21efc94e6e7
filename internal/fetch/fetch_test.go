package fetch

import (
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/article", false},
		{"http://example.com/article", false},
		{"ftp://example.com/file", true},
		{"file:///etc/passwd", true},
		{"https://localhost/admin", true},
		{"https://localhost.localdomain/", true},
		{"https://metadata.google.internal/computeMetadata/v1/", true},
		{"https://kubernetes.default.svc/api", true},
		{"https://service.internal/status", true},
		{"https://printer.local/", true},
		{"https://app.localhost/", true},
		{"https://127.0.0.1/", true},
		{"https://10.0.0.5/", true},
		{"https://172.16.1.1/", true},
		{"https://192.168.1.1/", true},
		{"https://169.254.169.254/latest/meta-data/", true},
		{"https://[::1]/", true},
		{"https://[fe80::1]/", true},
		{"https://[fc00::1]/", true},
		{"https://255.255.255.255/", true},
		{"https://192.0.2.10/", true},
		{"https://8.8.8.8/", false},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestHashContent_NormalizesWhitespaceAndCase(t *testing.T) {
	a := HashContent("The  Quick\nBrown Fox")
	b := HashContent("the quick brown fox")
	if a != b {
		t.Errorf("hashes should match after normalization: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("hash should be 16 hex chars, got %d", len(a))
	}
	if HashContent("different content") == a {
		t.Error("different content should hash differently")
	}
}

func TestLooksPaywalled(t *testing.T) {
	short := "Subscribe to continue reading this story."
	long := strings.Repeat("Real article prose with substance. ", 200)

	if !looksPaywalled("www.wsj.com", short) {
		t.Error("short content on a paywalled domain should flag")
	}
	if looksPaywalled("www.wsj.com", long) {
		t.Error("long content should not flag even on a paywalled domain")
	}
	if !looksPaywalled("example.com", "Thanks for reading. Already a subscriber? Sign in.") {
		t.Error("paywall phrases in a short body should flag")
	}
	if looksPaywalled("example.com", "A normal short page about subscriptions pricing.") {
		t.Error("no phrase match should not flag")
	}
}

func TestLooksBotDetection(t *testing.T) {
	if !looksBotDetection("Just a moment... Checking your browser before accessing.") {
		t.Error("strong indicator in a short body should flag")
	}
	if !looksBotDetection("Access denied. Ray ID: 1234abcd. Contact the site owner.") {
		t.Error("two indicators in a short body should flag")
	}
	padding := strings.Repeat("Substantive article text goes on and on here. ", 100)
	if looksBotDetection(padding + " cloudflare protects this site, please enable javascript for comments") {
		t.Error("indicators buried in a long body should not flag")
	}
	if looksBotDetection("An article about CAPTCHA history" + strings.Repeat(" with plenty of real content", 80)) {
		t.Error("single strong indicator in a 2000+ char body should not flag")
	}
}

func TestIsPaywalledDomain(t *testing.T) {
	if !isPaywalledDomain("www.nytimes.com") {
		t.Error("subdomain of a paywalled domain should match")
	}
	if isPaywalledDomain("notnytimes.com") {
		t.Error("suffix match must respect label boundaries")
	}
}

func TestExtractHeuristic(t *testing.T) {
	html := `<html><head>
		<title>The Story Headline | Example News</title>
		<meta name="author" content="Jane Reporter">
		<meta property="article:published_time" content="2026-08-17T09:00:00Z">
	</head><body>
		<nav>Home News Sports</nav>
		<article>
			<p>First paragraph of the story.</p>
			<p>Second paragraph with details.</p>
		</article>
		<footer>Copyright</footer>
	</body></html>`

	r := extractHeuristic(html)
	if r.Title != "The Story Headline" {
		t.Errorf("site suffix should be stripped from title, got %q", r.Title)
	}
	if r.Author != "Jane Reporter" {
		t.Errorf("unexpected author: %q", r.Author)
	}
	if r.PublishedAt == nil {
		t.Error("published time should parse")
	}
	if !strings.Contains(r.Content, "First paragraph") || !strings.Contains(r.Content, "Second paragraph") {
		t.Errorf("article paragraphs should be extracted: %q", r.Content)
	}
	if strings.Contains(r.Content, "Home News Sports") || strings.Contains(r.Content, "Copyright") {
		t.Errorf("nav and footer should be stripped: %q", r.Content)
	}
}

func TestExtractHeuristic_TitleFallbacks(t *testing.T) {
	r := extractHeuristic(`<html><body><h1>Bare Heading</h1><p>text</p></body></html>`)
	if r.Title != "Bare Heading" {
		t.Errorf("missing <title> should fall back to h1, got %q", r.Title)
	}
}

func TestExtract_SiteExtractorWins(t *testing.T) {
	paragraph := strings.Repeat("Wikipedia prose about the subject at hand. ", 20)
	html := `<html><body>
		<h1 id="firstHeading">Subject</h1>
		<div id="mw-content-text"><p>` + paragraph + `</p></div>
	</body></html>`

	f := New(DefaultOptions())
	result, err := f.Extract("https://en.wikipedia.org/wiki/Subject", html)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Extractor != "wikipedia" {
		t.Errorf("site extractor should win, got %q", result.Extractor)
	}
	if result.Title != "Subject" {
		t.Errorf("unexpected title: %q", result.Title)
	}
	if result.ContentHash == "" {
		t.Error("content hash should be set")
	}
	if result.WordCount == 0 || result.ReadingMinutes == 0 {
		t.Error("metadata should be computed")
	}
}

func TestExtract_FallsThroughToHeuristic(t *testing.T) {
	// Unknown host, body too thin for reader mode: the heuristic handles it.
	html := `<html><head><title>Tiny Page</title></head>
	<body><article><p>Only a sentence here.</p></article></body></html>`

	f := New(DefaultOptions())
	result, err := f.Extract("https://example.com/tiny", html)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Extractor != "heuristic" {
		t.Errorf("expected heuristic extractor, got %q", result.Extractor)
	}
	if !strings.Contains(result.Content, "Only a sentence here.") {
		t.Errorf("unexpected content: %q", result.Content)
	}
}

func TestEnhancedStateTransitions(t *testing.T) {
	fetcher := New(DefaultOptions())
	renderer := NewRenderer(0)
	archiver := NewArchiver(0)

	full := &Result{Content: strings.Repeat("x", 600)}
	thin := &Result{Content: "x"}
	paywalled := &Result{Content: strings.Repeat("x", 600), Paywalled: true}

	t.Run("sufficient direct result is done", func(t *testing.T) {
		e := NewEnhanced(fetcher, renderer, archiver)
		if got := e.afterDirect("https://example.com/a", full); got != stateDone {
			t.Errorf("state = %v, want done", got)
		}
	})

	t.Run("very short content goes to JS render", func(t *testing.T) {
		e := NewEnhanced(fetcher, renderer, archiver)
		if got := e.afterDirect("https://example.com/a", thin); got != stateJSRender {
			t.Errorf("state = %v, want js render", got)
		}
	})

	t.Run("js-heavy host goes to JS render when insufficient", func(t *testing.T) {
		e := NewEnhanced(fetcher, renderer, archiver)
		medium := &Result{Content: strings.Repeat("x", 300)}
		if got := e.afterDirect("https://www.bloomberg.com/a", medium); got != stateJSRender {
			t.Errorf("state = %v, want js render", got)
		}
	})

	t.Run("paywalled result goes to archive when renderer cannot help", func(t *testing.T) {
		e := NewEnhanced(fetcher, nil, archiver)
		if got := e.afterDirect("https://www.wsj.com/a", paywalled); got != stateArchive {
			t.Errorf("state = %v, want archive", got)
		}
	})

	t.Run("no fallbacks available is done", func(t *testing.T) {
		e := NewEnhanced(fetcher, nil, nil)
		if got := e.afterDirect("https://example.com/a", thin); got != stateDone {
			t.Errorf("state = %v, want done", got)
		}
	})
}

func TestResultFromSnapshot_TagsArchiveFallback(t *testing.T) {
	e := NewEnhanced(New(DefaultOptions()), nil, NewArchiver(0))
	snapshot := &Snapshot{
		HTML: `<html><head><title>Archived Story</title></head><body><article><p>` +
			strings.Repeat("Recovered paragraph text. ", 30) + `</p></article></body></html>`,
		URL:       "https://web.archive.org/web/20260814000000/https://www.wsj.com/a",
		SourceTag: SourceWayback,
	}

	result, err := e.resultFromSnapshot("https://www.wsj.com/a", snapshot)
	if err != nil {
		t.Fatalf("resultFromSnapshot failed: %v", err)
	}
	if result.FallbackUsed != FallbackArchive {
		t.Errorf("FallbackUsed = %q, want %q", result.FallbackUsed, FallbackArchive)
	}
	if result.ArchiveSource != SourceWayback {
		t.Errorf("ArchiveSource = %q, want %q", result.ArchiveSource, SourceWayback)
	}
	if result.Paywalled {
		t.Error("archive copies are not paywalled")
	}
	if result.FinalURL != snapshot.URL {
		t.Errorf("FinalURL = %q, want the snapshot URL", result.FinalURL)
	}
}

func TestPickBetter(t *testing.T) {
	small := &Result{Content: "short"}
	large := &Result{Content: strings.Repeat("long ", 100)}

	if pickBetter(nil, small) != small {
		t.Error("candidate should win over nil")
	}
	if pickBetter(small, large) != large {
		t.Error("larger content should win")
	}
	if pickBetter(large, small) != large {
		t.Error("current should survive a smaller candidate")
	}
}

func TestIsJSHeavyHost(t *testing.T) {
	if !isJSHeavyHost("https://www.bloomberg.com/news/articles/x") {
		t.Error("bloomberg should be JS-heavy")
	}
	if isJSHeavyHost("https://example.com/a") {
		t.Error("example.com should not be JS-heavy")
	}
}

func TestStripWaybackToolbar(t *testing.T) {
	html := `<html><body>
<!-- BEGIN WAYBACK TOOLBAR INSERT -->
<div id="wm-ipp">toolbar junk</div>
<!-- END WAYBACK TOOLBAR INSERT -->
<p>The archived article body.</p>
</body></html>`

	out := stripWaybackToolbar(html)
	if strings.Contains(out, "toolbar junk") {
		t.Errorf("toolbar should be removed: %q", out)
	}
	if !strings.Contains(out, "The archived article body.") {
		t.Errorf("article body should survive: %q", out)
	}
}
