// Package llm abstracts the language model providers behind a single
// interface. Callers pick a capability tier rather than a model name; each
// provider maps tiers to its own models.
package llm

import (
	"context"
	"fmt"
	"strings"

	"skim/internal/config"
)

// ModelTier selects a capability/cost bucket instead of a concrete model.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Cheap, quick; routine summarization
	TierStandard ModelTier = "standard" // Balanced; long or technical content
	TierAdvanced ModelTier = "advanced" // Most capable; reserved for future use
)

// Capabilities describes what a provider supports so callers can degrade
// gracefully.
type Capabilities struct {
	SystemPrompt     bool
	PromptCaching    bool
	JSONMode         bool
	Streaming        bool
	MaxContextTokens int
}

// Request is a single completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Model        string // Overrides the tier-derived model when set
	Tier         ModelTier
	MaxTokens    int
	Temperature  float32
	UseCache     bool // Ask for prompt caching on the system prompt when supported
	JSONMode     bool // Ask for a JSON-constrained response when supported
}

// Response is a completion result with token accounting.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// PrefixRequest splits a prompt into two stable prefixes and the per-call
// dynamic tail. Providers with prompt caching mark the prefixes cacheable;
// the rest concatenate them into the user message.
type PrefixRequest struct {
	SystemPrompt      string
	InstructionPrompt string
	DynamicContent    string
	Model             string
	Tier              ModelTier
	MaxTokens         int
	Temperature       float32
	JSONMode          bool
}

// Provider is a language model backend.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	ModelForTier(tier ModelTier) string
	Complete(ctx context.Context, req Request) (*Response, error)
	CompleteWithCacheablePrefix(ctx context.Context, req PrefixRequest) (*Response, error)
}

// MapLegacyModelToTier classifies a stored model name into a tier. Settings
// written before tiers existed carry raw model names; small-model markers map
// to the fast tier, everything else to standard.
func MapLegacyModelToTier(model string) ModelTier {
	m := strings.ToLower(model)
	for _, marker := range []string{"haiku", "flash", "-mini"} {
		if strings.Contains(m, marker) {
			return TierFast
		}
	}
	return TierStandard
}

// NewFromConfig builds the configured provider. The preferred provider is
// used when its key is present; otherwise the keys are tried in a fixed
// order (anthropic, openai, gemini). It returns nil with no error when no
// keys are configured; summarization is then unavailable but the rest of
// the system works.
func NewFromConfig(cfg *config.Config) (Provider, error) {
	switch strings.ToLower(cfg.AI.Provider) {
	case "anthropic":
		if cfg.AI.AnthropicAPIKey != "" {
			return NewAnthropicProvider(cfg.AI.AnthropicAPIKey, cfg.AI.Model), nil
		}
	case "openai":
		if cfg.AI.OpenAIAPIKey != "" {
			return NewOpenAIProvider(cfg.AI.OpenAIAPIKey, cfg.AI.Model), nil
		}
	case "gemini", "google":
		if cfg.AI.GoogleAPIKey != "" {
			return NewGeminiProvider(cfg.AI.GoogleAPIKey, cfg.AI.Model)
		}
	case "":
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.AI.Provider)
	}

	// The preferred provider's key is absent (or none was preferred); fall
	// through the fixed order.
	if cfg.AI.AnthropicAPIKey != "" {
		return NewAnthropicProvider(cfg.AI.AnthropicAPIKey, cfg.AI.Model), nil
	}
	if cfg.AI.OpenAIAPIKey != "" {
		return NewOpenAIProvider(cfg.AI.OpenAIAPIKey, cfg.AI.Model), nil
	}
	if cfg.AI.GoogleAPIKey != "" {
		return NewGeminiProvider(cfg.AI.GoogleAPIKey, cfg.AI.Model)
	}
	return nil, nil
}
