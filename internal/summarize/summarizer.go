// Package summarize runs the two-step generate-then-critique summarization
// pipeline over a language model provider, fronted by the tiered cache.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"skim/internal/core"
	"skim/internal/llm"
	"skim/internal/logger"
)

// Cache is the subset of the tiered cache the summarizer needs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// Options configures the summarizer.
type Options struct {
	DefaultTier     llm.ModelTier
	DisableCritic   bool
	MaxContentChars int
	Temperature     float32
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTier:     llm.TierFast,
		MaxContentChars: 15000,
		Temperature:     0.3,
	}
}

// Summarizer produces article summaries.
type Summarizer struct {
	provider llm.Provider
	cache    Cache
	options  Options
}

// New creates a summarizer. cache may be nil, disabling the cache layer.
func New(provider llm.Provider, cache Cache, options Options) *Summarizer {
	if options.MaxContentChars <= 0 {
		options.MaxContentChars = 15000
	}
	if options.DefaultTier == "" {
		options.DefaultTier = llm.TierFast
	}
	return &Summarizer{provider: provider, cache: cache, options: options}
}

// Terms whose presence marks content as technical enough for the standard
// tier.
var technicalTerms = []string{
	"algorithm", "neural", "quantum", "blockchain", "protocol", "cryptographic",
	"machine learning", "ai", "api", "infrastructure", "architecture",
	"microservices", "distributed", "consensus", "encryption", "compiler",
	"semiconductor", "genomic", "molecular", "theorem",
}

// response is the JSON shape both pipeline steps emit.
type response struct {
	Headline      string   `json:"headline"`
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"key_points"`
	ContentType   string   `json:"content_type"`
	RevisionsMade []string `json:"revisions_made,omitempty"`
}

// SummarizeArticle produces a summary for the article, consulting the cache
// first. forceTier overrides complexity-based tier selection when non-empty.
func (s *Summarizer) SummarizeArticle(ctx context.Context, article *core.Article, forceTier llm.ModelTier) (*core.Summary, error) {
	if article == nil {
		return nil, fmt.Errorf("article is nil")
	}
	if article.Content == "" {
		return nil, fmt.Errorf("article has no content to summarize")
	}

	cacheKey := "summary:" + article.URL
	if s.cache != nil && article.URL != "" {
		if data, ok := s.cache.Get(cacheKey); ok {
			var cached core.Summary
			if err := json.Unmarshal(data, &cached); err == nil && cached.SummaryText != "" {
				cached.ModelTier = normalizeTier(cached.ModelTier)
				return &cached, nil
			}
		}
	}

	tier := forceTier
	if tier == "" {
		tier = s.selectTier(article)
	}

	content := article.Content
	if len(content) > s.options.MaxContentChars {
		content = content[:s.options.MaxContentChars] + "\n\n[content truncated for length]"
	}
	dynamic := fmt.Sprintf("Title: %s\nAuthor: %s\n\n%s", article.Title, article.Author, content)

	resp, err := s.provider.CompleteWithCacheablePrefix(ctx, llm.PrefixRequest{
		SystemPrompt:      systemPrompt,
		InstructionPrompt: instructionPrompt,
		DynamicContent:    dynamic,
		Tier:              tier,
		MaxTokens:         2048,
		Temperature:       s.options.Temperature,
		JSONMode:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	draft, err := parseResponse(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}

	if s.shouldRunCritic(article, draft) {
		if revised := s.runCritic(ctx, draft); revised != nil {
			draft = revised
		}
	}

	summary := s.finalize(draft, article)
	summary.ModelTier = string(tier)
	summary.GeneratedAt = time.Now().UTC()

	if s.cache != nil && article.URL != "" {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(cacheKey, data, 0); err != nil {
				logger.Warn("failed to cache summary", "url", article.URL, "error", err)
			}
		}
	}
	return summary, nil
}

// selectTier picks standard for long or technical content, the configured
// default otherwise.
func (s *Summarizer) selectTier(article *core.Article) llm.ModelTier {
	words := article.WordCount
	if words == 0 {
		words = len(strings.Fields(article.Content))
	}
	if words > 2000 {
		return llm.TierStandard
	}
	if technicalTermCount(article.Title+" "+article.Content) >= 3 {
		return llm.TierStandard
	}
	return s.options.DefaultTier
}

func (s *Summarizer) shouldRunCritic(article *core.Article, draft *response) bool {
	if s.options.DisableCritic {
		return false
	}
	words := article.WordCount
	if words == 0 {
		words = len(strings.Fields(article.Content))
	}
	return words > 2000 || draft.ContentType == "newsletter"
}

// runCritic runs the review pass on the fast tier. Any failure keeps the
// step-1 draft.
func (s *Summarizer) runCritic(ctx context.Context, draft *response) *response {
	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return nil
	}
	resp, err := s.provider.Complete(ctx, llm.Request{
		UserPrompt:  criticPrompt + string(draftJSON),
		Tier:        llm.TierFast,
		Model:       s.provider.ModelForTier(llm.TierFast),
		MaxTokens:   2048,
		Temperature: s.options.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		logger.Warn("critic pass failed, keeping draft", "error", err)
		return nil
	}
	revised, err := parseResponse(resp.Text)
	if err != nil {
		logger.Warn("critic returned unparseable response, keeping draft", "error", err)
		return nil
	}
	if revised.Summary == "" {
		return nil
	}
	return revised
}

// finalize applies field caps and derives fallbacks for missing fields.
func (s *Summarizer) finalize(r *response, article *core.Article) *core.Summary {
	headline := strings.TrimSpace(r.Headline)
	summaryText := strings.TrimSpace(stripMarkdown(r.Summary))

	if summaryText == "" {
		summaryText = stripMarkdown(firstSentences(article.Content, 3))
	}
	if headline == "" {
		headline = firstSentences(summaryText, 1)
	}
	if len(headline) > 200 {
		headline = headline[:200]
	}

	keyPoints := r.KeyPoints
	if len(keyPoints) > 5 {
		keyPoints = keyPoints[:5]
	}

	return &core.Summary{
		Headline:    headline,
		SummaryText: summaryText,
		KeyPoints:   keyPoints,
		ContentType: r.ContentType,
	}
}

// parseResponse unmarshals a pipeline step's JSON, tolerating markdown code
// fences around it.
func parseResponse(text string) (*response, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}
	// Tolerate prose around the object by slicing to the outermost braces.
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var r response
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("invalid summary JSON: %w", err)
	}
	if r.Headline == "" && r.Summary == "" {
		return nil, fmt.Errorf("summary JSON missing both headline and summary")
	}
	return &r, nil
}

func technicalTermCount(text string) int {
	lower := strings.ToLower(text)
	count := 0

	wordTerms := map[string]bool{}
	for _, term := range technicalTerms {
		if strings.Contains(term, " ") {
			count += strings.Count(lower, term)
		} else {
			wordTerms[term] = true
		}
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, w := range words {
		if wordTerms[w] {
			count++
		}
	}
	return count
}

// normalizeTier maps legacy cached records that stored full model names onto
// a tier.
func normalizeTier(stored string) string {
	switch llm.ModelTier(stored) {
	case llm.TierFast, llm.TierStandard, llm.TierAdvanced:
		return stored
	}
	return string(llm.MapLegacyModelToTier(stored))
}

// firstSentences returns up to n sentences from text.
func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	var out strings.Builder
	taken := 0
	for _, sentence := range strings.SplitAfter(text, ". ") {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		out.WriteString(sentence)
		taken++
		if taken >= n {
			break
		}
	}
	result := strings.TrimSpace(out.String())
	if result == "" {
		result = text
	}
	if len(result) > 500 {
		result = result[:500]
	}
	return result
}

// stripMarkdown removes the formatting markers a model sometimes leaks into
// prose fields.
func stripMarkdown(text string) string {
	replacer := strings.NewReplacer("**", "", "__", "", "`", "", "##", "", "#", "")
	lines := strings.Split(replacer.Replace(text), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		lines[i] = line
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
