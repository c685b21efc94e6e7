package library

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skim/internal/core"
	"skim/internal/fetch"
	"skim/internal/resolver"
)

type mockStore struct {
	feeds    map[string]*core.Feed
	articles map[string]*core.Article
	nextID   int64
}

func newMockStore() *mockStore {
	return &mockStore{
		feeds:    map[string]*core.Feed{},
		articles: map[string]*core.Article{},
		nextID:   1,
	}
}

func (m *mockStore) GetOrCreateFeed(url, name string) (*core.Feed, error) {
	if feed, ok := m.feeds[url]; ok {
		return feed, nil
	}
	feed := &core.Feed{ID: m.nextID, URL: url, Name: name}
	m.nextID++
	m.feeds[url] = feed
	return feed, nil
}

func (m *mockStore) GetArticleByURL(url string) (*core.Article, error) {
	return m.articles[url], nil
}

func (m *mockStore) AddArticle(a *core.Article) (int64, error) {
	if _, ok := m.articles[a.URL]; ok {
		return 0, nil
	}
	id := m.nextID
	m.nextID++
	copied := *a
	copied.ID = id
	m.articles[a.URL] = &copied
	return id, nil
}

type mockFetcher struct {
	result  *fetch.Result
	fetched []string
}

func (m *mockFetcher) Fetch(_ context.Context, pageURL string, _ fetch.Policy) (*fetch.Result, error) {
	m.fetched = append(m.fetched, pageURL)
	r := *m.result
	r.URL = pageURL
	return &r, nil
}

type mockResolver struct{ result resolver.Result }

func (m *mockResolver) Resolve(_ context.Context, rawURL, _ string) resolver.Result {
	r := m.result
	r.OriginalURL = rawURL
	return r
}

func testOptions(t *testing.T) Options {
	return Options{UploadsDir: t.TempDir(), MaxUploadSizeMB: 1}
}

func TestAddURL(t *testing.T) {
	store := newMockStore()
	fetcher := &mockFetcher{result: &fetch.Result{
		Title:       "A Story",
		Content:     strings.Repeat("body ", 200),
		ContentHash: "abc",
		WordCount:   200,
	}}
	lib := New(store, fetcher, nil, testOptions(t))

	article, err := lib.AddURL(context.Background(), "https://example.com/story", 3)
	if err != nil {
		t.Fatalf("AddURL failed: %v", err)
	}
	if article.ID == 0 || article.Title != "A Story" {
		t.Errorf("unexpected article: %+v", article)
	}
	if article.ContentType != core.ContentTypeURL {
		t.Errorf("content type = %q", article.ContentType)
	}
	if article.UserID != 3 {
		t.Errorf("user id = %d", article.UserID)
	}

	feed, ok := store.feeds[core.StandaloneFeedURL]
	if !ok {
		t.Fatal("standalone feed should be created")
	}
	if article.FeedID != feed.ID {
		t.Errorf("article should land in the standalone feed")
	}
}

func TestAddURL_ResolvesAggregator(t *testing.T) {
	store := newMockStore()
	fetcher := &mockFetcher{result: &fetch.Result{Title: "Publisher Story", Content: "x"}}
	res := &mockResolver{result: resolver.Result{
		SourceURL:  "https://publisher.example/story",
		Confidence: 0.9,
	}}
	lib := New(store, fetcher, res, testOptions(t))

	article, err := lib.AddURL(context.Background(), "https://news.ycombinator.com/item?id=1", 0)
	if err != nil {
		t.Fatalf("AddURL failed: %v", err)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != "https://publisher.example/story" {
		t.Errorf("publisher URL should be fetched: %v", fetcher.fetched)
	}
	if article.URL != "https://news.ycombinator.com/item?id=1" {
		t.Errorf("stored URL should stay the submitted one: %q", article.URL)
	}
	if article.SourceURL != "https://publisher.example/story" {
		t.Errorf("source URL should be recorded: %q", article.SourceURL)
	}
}

func TestAddURL_DuplicateReturnsExisting(t *testing.T) {
	store := newMockStore()
	fetcher := &mockFetcher{result: &fetch.Result{Title: "A Story", Content: "x"}}
	lib := New(store, fetcher, nil, testOptions(t))

	first, err := lib.AddURL(context.Background(), "https://example.com/story", 0)
	if err != nil {
		t.Fatalf("AddURL failed: %v", err)
	}
	second, err := lib.AddURL(context.Background(), "https://example.com/story", 0)
	if err != nil {
		t.Fatalf("AddURL failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate should return the existing article: %d vs %d", second.ID, first.ID)
	}
	if len(fetcher.fetched) != 1 {
		t.Errorf("duplicate should not be fetched again: %v", fetcher.fetched)
	}
}

func TestAddUpload_Text(t *testing.T) {
	store := newMockStore()
	opts := testOptions(t)
	lib := New(store, nil, nil, opts)

	article, err := lib.AddUpload("notes.txt", []byte("some plain notes"), 2)
	if err != nil {
		t.Fatalf("AddUpload failed: %v", err)
	}
	if article.ContentType != core.ContentTypeTXT {
		t.Errorf("content type = %q", article.ContentType)
	}
	if article.Title != "notes" {
		t.Errorf("title should fall back to the filename stem: %q", article.Title)
	}
	if !strings.Contains(article.Content, "some plain notes") {
		t.Errorf("content = %q", article.Content)
	}

	// The upload is persisted under a UUID name with the extension kept.
	if article.StoragePath == "" || filepath.Ext(article.StoragePath) != ".txt" {
		t.Fatalf("unexpected storage path: %q", article.StoragePath)
	}
	if filepath.Base(article.StoragePath) == "notes.txt" {
		t.Error("storage name should not reuse the original filename")
	}
	data, err := os.ReadFile(article.StoragePath)
	if err != nil {
		t.Fatalf("persisted file unreadable: %v", err)
	}
	if string(data) != "some plain notes" {
		t.Errorf("persisted bytes = %q", data)
	}
}

func TestAddUpload_SizeCap(t *testing.T) {
	lib := New(newMockStore(), nil, nil, Options{UploadsDir: t.TempDir(), MaxUploadSizeMB: 1})
	big := make([]byte, 2<<20)
	if _, err := lib.AddUpload("big.txt", big, 0); err == nil {
		t.Error("oversized upload should be rejected")
	}
}

func TestAddUpload_UnsupportedExtension(t *testing.T) {
	lib := New(newMockStore(), nil, nil, testOptions(t))
	if _, err := lib.AddUpload("archive.tar.gz", []byte("x"), 0); err == nil {
		t.Error("unsupported extension should be rejected")
	}
}

func TestExtractMarkdown(t *testing.T) {
	md := "preamble\n\n# The Title\n\nBody text."
	out, err := extractMarkdown([]byte(md))
	if err != nil {
		t.Fatalf("extractMarkdown failed: %v", err)
	}
	if out.Title != "The Title" {
		t.Errorf("title = %q", out.Title)
	}
	if out.Content != md {
		t.Error("markdown content should be kept as-is")
	}
}

func TestExtractHTMLUpload(t *testing.T) {
	html := `<html><head><title>Saved Page</title><script>x()</script></head>
	<body><p>Saved content.</p></body></html>`
	out, err := extractHTMLUpload([]byte(html))
	if err != nil {
		t.Fatalf("extractHTMLUpload failed: %v", err)
	}
	if out.Title != "Saved Page" {
		t.Errorf("title = %q", out.Title)
	}
	if strings.Contains(out.Content, "x()") {
		t.Error("scripts should be stripped")
	}
	if !strings.Contains(out.Content, "Saved content.") {
		t.Errorf("content = %q", out.Content)
	}
}

func TestExtractDOCX(t *testing.T) {
	documentXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
	<w:body>
		<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
		<w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
	</w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create failed: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close failed: %v", err)
	}

	out, err := extractDOCX(buf.Bytes())
	if err != nil {
		t.Fatalf("extractDOCX failed: %v", err)
	}
	if !strings.Contains(out.Content, "<p>First paragraph.</p>") {
		t.Errorf("content = %q", out.Content)
	}
	if !strings.Contains(out.Content, "<p>Second paragraph.</p>") {
		t.Errorf("runs within a paragraph should join: %q", out.Content)
	}
}

func TestExtractEML(t *testing.T) {
	raw := strings.Join([]string{
		"From: Jane <jane@example.com>",
		"Subject: Saved newsletter",
		"Date: Mon, 17 Aug 2026 09:30:00 +0000",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Plain body.",
	}, "\r\n")

	out, err := extractEML([]byte(raw))
	if err != nil {
		t.Fatalf("extractEML failed: %v", err)
	}
	if out.Title != "Saved newsletter" {
		t.Errorf("title = %q", out.Title)
	}
	if out.Author != "Jane" {
		t.Errorf("author = %q", out.Author)
	}
	if !strings.Contains(out.Content, "Plain body.") {
		t.Errorf("content = %q", out.Content)
	}
	if out.Date == nil {
		t.Error("date should parse")
	}
}
