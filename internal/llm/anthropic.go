package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

// Anthropic model names per tier.
const (
	anthropicFastModel     = "claude-3-5-haiku-latest"
	anthropicStandardModel = "claude-sonnet-4-5"
	anthropicAdvancedModel = "claude-opus-4-1"
)

// AnthropicProvider backs the Provider interface with the Anthropic Messages
// API. System prompts are sent with a cache-control marker when the caller
// asks for caching, which prices repeated prefixes at the cached rate.
type AnthropicProvider struct {
	client       *anthropic.Client
	defaultModel string
}

// NewAnthropicProvider creates a provider. defaultModel overrides the
// tier-derived model for every request when non-empty.
func NewAnthropicProvider(apiKey, defaultModel string) *AnthropicProvider {
	client := anthropic.NewClient(apiKey, anthropic.WithBetaVersion(anthropic.BetaPromptCaching20240731))
	return &AnthropicProvider{client: client, defaultModel: defaultModel}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Capabilities() Capabilities {
	return Capabilities{
		SystemPrompt:     true,
		PromptCaching:    true,
		JSONMode:         false,
		Streaming:        true,
		MaxContextTokens: 200_000,
	}
}

func (p *AnthropicProvider) ModelForTier(tier ModelTier) string {
	switch tier {
	case TierFast:
		return anthropicFastModel
	case TierAdvanced:
		return anthropicAdvancedModel
	default:
		return anthropicStandardModel
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		model = p.ModelForTier(req.Tier)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	mr := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.UserPrompt),
		},
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		mr.Temperature = &temp
	}
	if req.SystemPrompt != "" {
		if req.UseCache {
			mr.MultiSystem = []anthropic.MessageSystemPart{{
				Type: "text",
				Text: req.SystemPrompt,
				CacheControl: &anthropic.MessageCacheControl{
					Type: anthropic.CacheControlTypeEphemeral,
				},
			}}
		} else {
			mr.System = req.SystemPrompt
		}
	}

	resp, err := p.client.CreateMessages(ctx, mr)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic returned empty response")
	}

	return &Response{
		Text:         resp.Content[0].GetText(),
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CachedTokens: resp.Usage.CacheReadInputTokens,
	}, nil
}

// CompleteWithCacheablePrefix sends the system and instruction prompts as
// cache-marked system parts so repeated summarization calls reuse the prefix.
func (p *AnthropicProvider) CompleteWithCacheablePrefix(ctx context.Context, req PrefixRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		model = p.ModelForTier(req.Tier)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	cache := &anthropic.MessageCacheControl{Type: anthropic.CacheControlTypeEphemeral}
	mr := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		MultiSystem: []anthropic.MessageSystemPart{
			{Type: "text", Text: req.SystemPrompt, CacheControl: cache},
			{Type: "text", Text: req.InstructionPrompt, CacheControl: cache},
		},
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.DynamicContent),
		},
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		mr.Temperature = &temp
	}

	resp, err := p.client.CreateMessages(ctx, mr)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic returned empty response")
	}

	return &Response{
		Text:         resp.Content[0].GetText(),
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CachedTokens: resp.Usage.CacheReadInputTokens,
	}, nil
}
