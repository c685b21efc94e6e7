package feeds

import (
	"context"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <description>A blog</description>
    <item>
      <title>First Post</title>
      <link>https://example.com/first</link>
      <description>Short description</description>
      <pubDate>Mon, 17 Aug 2026 10:00:00 GMT</pubDate>
      <guid>https://example.com/first</guid>
      <category>go</category>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/second</link>
      <description>Another description</description>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <link href="https://example.org"/>
  <entry>
    <title>Atom Entry</title>
    <link href="https://example.org/entry"/>
    <id>urn:example:entry-1</id>
    <updated>2026-08-17T10:00:00Z</updated>
    <summary>Entry summary</summary>
  </entry>
</feed>`

func TestParseBytes_RSS(t *testing.T) {
	p := NewParser()
	feed, err := p.ParseBytes([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("ParseBytes failed: %v", err)
	}
	if feed.Title != "Example Blog" {
		t.Errorf("unexpected feed title: %q", feed.Title)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(feed.Items))
	}

	first := feed.Items[0]
	if first.Title != "First Post" || first.URL != "https://example.com/first" {
		t.Errorf("unexpected first item: %+v", first)
	}
	if first.Content != "Short description" {
		t.Errorf("description should back-fill content: %q", first.Content)
	}
	if first.PublishedAt == nil {
		t.Error("pubDate should parse")
	}
	if len(first.Categories) != 1 || first.Categories[0] != "go" {
		t.Errorf("unexpected categories: %v", first.Categories)
	}

	second := feed.Items[1]
	if second.GUID != second.URL {
		t.Errorf("missing guid should fall back to link, got %q", second.GUID)
	}
	if second.PublishedAt != nil {
		t.Error("item without dates should have nil PublishedAt")
	}
}

func TestParseBytes_Atom(t *testing.T) {
	p := NewParser()
	feed, err := p.ParseBytes([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("ParseBytes failed: %v", err)
	}
	if len(feed.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(feed.Items))
	}
	item := feed.Items[0]
	if item.URL != "https://example.org/entry" {
		t.Errorf("unexpected item URL: %q", item.URL)
	}
	if item.PublishedAt == nil {
		t.Error("updated timestamp should back-fill PublishedAt")
	}
}

func TestParseBytes_Invalid(t *testing.T) {
	p := NewParser()
	if _, err := p.ParseBytes([]byte("this is not a feed")); err == nil {
		t.Error("garbage input should fail to parse")
	}
}

func TestWaitForDomain_Paces(t *testing.T) {
	p := NewParser()
	p.minGap = 50 * time.Millisecond

	start := time.Now()
	if err := p.waitForDomain(context.Background(), "https://example.com/feed.xml"); err != nil {
		t.Fatalf("waitForDomain failed: %v", err)
	}
	if err := p.waitForDomain(context.Background(), "https://example.com/feed.xml"); err != nil {
		t.Fatalf("waitForDomain failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < p.minGap {
		t.Errorf("second request to same domain should wait, elapsed %v", elapsed)
	}

	// A different domain is not delayed by the first.
	start = time.Now()
	if err := p.waitForDomain(context.Background(), "https://other.example/feed.xml"); err != nil {
		t.Fatalf("waitForDomain failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("different domain should not wait, elapsed %v", elapsed)
	}
}

func TestWaitForDomain_Cancelled(t *testing.T) {
	p := NewParser()
	p.minGap = time.Minute

	if err := p.waitForDomain(context.Background(), "https://example.com/feed.xml"); err != nil {
		t.Fatalf("waitForDomain failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.waitForDomain(ctx, "https://example.com/feed.xml"); err == nil {
		t.Error("cancelled context should abort the wait")
	}
}
