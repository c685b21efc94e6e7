package clusterer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"skim/internal/core"
	"skim/internal/llm"
)

type mockProvider struct {
	response string
	calls    int
}

func (m *mockProvider) Name() string                        { return "mock" }
func (m *mockProvider) Capabilities() llm.Capabilities      { return llm.Capabilities{JSONMode: true} }
func (m *mockProvider) ModelForTier(t llm.ModelTier) string { return "mock-" + string(t) }

func (m *mockProvider) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	m.calls++
	return &llm.Response{Text: m.response}, nil
}

func (m *mockProvider) CompleteWithCacheablePrefix(_ context.Context, _ llm.PrefixRequest) (*llm.Response, error) {
	m.calls++
	return &llm.Response{Text: m.response}, nil
}

type mapCache struct{ data map[string][]byte }

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(key string) ([]byte, bool) { v, ok := c.data[key]; return v, ok }
func (c *mapCache) Set(key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func testArticles(n int) []core.Article {
	articles := make([]core.Article, n)
	for i := range articles {
		articles[i] = core.Article{
			ID:      int64(i + 1),
			Title:   fmt.Sprintf("Article %d", i+1),
			Content: "some content",
		}
	}
	return articles
}

func TestClusterArticles_FewerThanTwo(t *testing.T) {
	provider := &mockProvider{}
	c := New(provider, nil, nil)

	topics, err := c.ClusterArticles(context.Background(), testArticles(1))
	if err != nil {
		t.Fatalf("ClusterArticles failed: %v", err)
	}
	if provider.calls != 0 {
		t.Error("a single article should not call the model")
	}
	if len(topics) != 1 || topics[0].Label != "All Articles" {
		t.Errorf("expected single All Articles group, got %v", topics)
	}
	if len(topics[0].ArticleIDs) != 1 || topics[0].ArticleIDs[0] != 1 {
		t.Errorf("group should hold the article, got %v", topics[0].ArticleIDs)
	}
}

func TestClusterArticles_ParsesAndSweepsLeftovers(t *testing.T) {
	// id 99 is unknown, id 4 is unassigned, id 2 appears twice.
	provider := &mockProvider{response: `{"topics": [
		{"label": "Kubernetes releases", "article_ids": [1, 2, 99]},
		{"label": "Chip manufacturing", "article_ids": [2, 3]}
	]}`}
	c := New(provider, nil, nil)

	topics, err := c.ClusterArticles(context.Background(), testArticles(4))
	if err != nil {
		t.Fatalf("ClusterArticles failed: %v", err)
	}
	if len(topics) != 3 {
		t.Fatalf("expected 3 topics (2 + Other), got %d: %v", len(topics), topics)
	}
	if got := topics[0].ArticleIDs; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("unknown ids should be dropped: %v", got)
	}
	if got := topics[1].ArticleIDs; len(got) != 1 || got[0] != 3 {
		t.Errorf("already-assigned ids should be dropped: %v", got)
	}
	if topics[2].Label != "Other" || len(topics[2].ArticleIDs) != 1 || topics[2].ArticleIDs[0] != 4 {
		t.Errorf("leftover id should land in Other: %v", topics[2])
	}
}

func TestClusterArticles_MarkdownFence(t *testing.T) {
	provider := &mockProvider{response: "```json\n" +
		`{"topics": [{"label": "Everything", "article_ids": [1, 2]}]}` + "\n```"}
	c := New(provider, nil, nil)

	topics, err := c.ClusterArticles(context.Background(), testArticles(2))
	if err != nil {
		t.Fatalf("fenced JSON should parse: %v", err)
	}
	if len(topics) != 1 || len(topics[0].ArticleIDs) != 2 {
		t.Errorf("unexpected topics: %v", topics)
	}
}

func TestClusterArticles_CacheByIDSet(t *testing.T) {
	provider := &mockProvider{response: `{"topics": [{"label": "Everything", "article_ids": [1, 2, 3]}]}`}
	cache := newMapCache()
	c := New(provider, cache, nil)

	articles := testArticles(3)
	if _, err := c.ClusterArticles(context.Background(), articles); err != nil {
		t.Fatalf("ClusterArticles failed: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 model call, got %d", provider.calls)
	}

	// Same set, different order: served from cache.
	reordered := []core.Article{articles[2], articles[0], articles[1]}
	if _, err := c.ClusterArticles(context.Background(), reordered); err != nil {
		t.Fatalf("ClusterArticles failed: %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("reordered id set should hit the cache, got %d calls", provider.calls)
	}
}

type recordedHistory struct {
	entries []core.TopicHistoryEntry
}

func (h *recordedHistory) SaveTopicRun(entries []core.TopicHistoryEntry) error {
	h.entries = entries
	return nil
}

func TestClusterAndRecord(t *testing.T) {
	provider := &mockProvider{response: `{"topics": [{"label": "Everything", "article_ids": [1, 2]}]}`}
	history := &recordedHistory{}
	c := New(provider, nil, history)

	start := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	if _, err := c.ClusterAndRecord(context.Background(), testArticles(2), start, end); err != nil {
		t.Fatalf("ClusterAndRecord failed: %v", err)
	}
	if len(history.entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history.entries))
	}
	e := history.entries[0]
	if e.Label != "Everything" || len(e.ArticleIDs) != 2 {
		t.Errorf("unexpected history entry: %+v", e)
	}
	if !e.PeriodStart.Equal(start) || !e.PeriodEnd.Equal(end) {
		t.Errorf("period not recorded: %+v", e)
	}
}
