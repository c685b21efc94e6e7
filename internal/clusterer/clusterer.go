// Package clusterer groups articles into labeled topics with a language
// model, caching runs and recording them as topic history for trend queries.
package clusterer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"skim/internal/core"
	"skim/internal/llm"
	"skim/internal/logger"
)

// Cache is the subset of the tiered cache the clusterer needs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// History persists clustering runs.
type History interface {
	SaveTopicRun(entries []core.TopicHistoryEntry) error
}

// Topic is one labeled group of articles.
type Topic struct {
	ID         int     `json:"id"`
	Label      string  `json:"label"`
	ArticleIDs []int64 `json:"article_ids"`
}

const cacheTTL = time.Hour

// Clusterer groups articles into topics.
type Clusterer struct {
	provider llm.Provider
	cache    Cache
	history  History
}

// New creates a clusterer. cache and history may be nil.
func New(provider llm.Provider, cache Cache, history History) *Clusterer {
	return &Clusterer{provider: provider, cache: cache, history: history}
}

// ClusterArticles groups the articles into labeled topics. Fewer than two
// articles yield a single "All Articles" group without a model call.
func (c *Clusterer) ClusterArticles(ctx context.Context, articles []core.Article) ([]Topic, error) {
	if len(articles) < 2 {
		ids := make([]int64, 0, len(articles))
		for _, a := range articles {
			ids = append(ids, a.ID)
		}
		return []Topic{{ID: 0, Label: "All Articles", ArticleIDs: ids}}, nil
	}

	key := cacheKey(articles)
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			var topics []Topic
			if err := json.Unmarshal(data, &topics); err == nil && len(topics) > 0 {
				return topics, nil
			}
		}
	}

	n := len(articles)
	minClusters := max(2, n/5)
	maxClusters := max(minClusters+2, n/3, 10)

	prompt := buildPrompt(articles, minClusters, maxClusters)
	resp, err := c.provider.Complete(ctx, llm.Request{
		UserPrompt: prompt,
		Tier:       llm.TierFast,
		Model:      c.provider.ModelForTier(llm.TierFast),
		MaxTokens:  2048,
		JSONMode:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("clustering request failed: %w", err)
	}

	topics, err := parseTopics(resp.Text, articles)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clustering response: %w", err)
	}

	if c.cache != nil {
		if data, err := json.Marshal(topics); err == nil {
			if err := c.cache.Set(key, data, cacheTTL); err != nil {
				logger.Warn("failed to cache clustering run", "error", err)
			}
		}
	}
	return topics, nil
}

// ClusterAndRecord clusters and persists the run as topic history covering
// the given period.
func (c *Clusterer) ClusterAndRecord(ctx context.Context, articles []core.Article, periodStart, periodEnd time.Time) ([]Topic, error) {
	topics, err := c.ClusterArticles(ctx, articles)
	if err != nil {
		return nil, err
	}
	if c.history != nil {
		entries := make([]core.TopicHistoryEntry, 0, len(topics))
		now := time.Now().UTC()
		for _, t := range topics {
			entries = append(entries, core.TopicHistoryEntry{
				Label:       t.Label,
				ArticleIDs:  t.ArticleIDs,
				ClusteredAt: now,
				PeriodStart: periodStart,
				PeriodEnd:   periodEnd,
			})
		}
		if err := c.history.SaveTopicRun(entries); err != nil {
			logger.Warn("failed to record topic history", "error", err)
		}
	}
	return topics, nil
}

// cacheKey hashes the sorted article ids so the same set clusters once per
// TTL window regardless of input order.
func cacheKey(articles []core.Article) string {
	ids := make([]int64, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%d,", id)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "topics:" + hex.EncodeToString(sum[:])[:16]
}

func buildPrompt(articles []core.Article, minClusters, maxClusters int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Group the following articles into %d to %d topics. Respond with a single JSON object and nothing else:

{"topics": [{"label": "...", "article_ids": [1, 2]}]}

Rules:
- Labels must be specific (for example "Apple Vision Pro reviews", not "Technology").
- Aim for 2 to 5 articles per topic.
- Every article id must appear in exactly one topic.
- Use an "Other" topic for articles that fit nowhere.

Articles:
`, minClusters, maxClusters)

	for _, a := range articles {
		fmt.Fprintf(&b, "[id=%d] %q - %s\n", a.ID, a.Title, snippet(a))
	}
	return b.String()
}

func snippet(a core.Article) string {
	text := a.SummaryShort
	if text == "" {
		text = a.Content
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 150 {
		text = text[:150]
	}
	return text
}

type topicsResponse struct {
	Topics []struct {
		Label      string  `json:"label"`
		ArticleIDs []int64 `json:"article_ids"`
	} `json:"topics"`
}

// parseTopics parses the model output, keeps only known unassigned ids per
// topic, and sweeps leftovers into "Other".
func parseTopics(text string, articles []core.Article) ([]Topic, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var parsed topicsResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("invalid topics JSON: %w", err)
	}

	known := make(map[int64]bool, len(articles))
	for _, a := range articles {
		known[a.ID] = true
	}
	assigned := map[int64]bool{}

	var topics []Topic
	for _, t := range parsed.Topics {
		var ids []int64
		for _, id := range t.ArticleIDs {
			if known[id] && !assigned[id] {
				ids = append(ids, id)
				assigned[id] = true
			}
		}
		if len(ids) == 0 {
			continue
		}
		topics = append(topics, Topic{ID: len(topics), Label: t.Label, ArticleIDs: ids})
	}

	var leftover []int64
	for _, a := range articles {
		if !assigned[a.ID] {
			leftover = append(leftover, a.ID)
		}
	}
	if len(leftover) > 0 {
		// Reuse an existing Other bucket if the model produced one.
		merged := false
		for i := range topics {
			if strings.EqualFold(topics[i].Label, "Other") {
				topics[i].ArticleIDs = append(topics[i].ArticleIDs, leftover...)
				merged = true
				break
			}
		}
		if !merged {
			topics = append(topics, Topic{ID: len(topics), Label: "Other", ArticleIDs: leftover})
		}
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("clustering produced no usable topics")
	}
	return topics, nil
}
