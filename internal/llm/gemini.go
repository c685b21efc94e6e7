package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini model names per tier.
const (
	geminiFastModel     = "gemini-2.0-flash"
	geminiStandardModel = "gemini-2.5-pro"
	geminiAdvancedModel = "gemini-2.5-pro"
)

// GeminiProvider backs the Provider interface with the Gemini API.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiProvider(apiKey, defaultModel string) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Capabilities() Capabilities {
	return Capabilities{
		SystemPrompt:     true,
		PromptCaching:    false,
		JSONMode:         true,
		Streaming:        true,
		MaxContextTokens: 1_000_000,
	}
}

func (p *GeminiProvider) ModelForTier(tier ModelTier) string {
	switch tier {
	case TierFast:
		return geminiFastModel
	case TierAdvanced:
		return geminiAdvancedModel
	default:
		return geminiStandardModel
	}
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		model = p.ModelForTier(req.Tier)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.UserPrompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		config.Temperature = &temp
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty response")
	}

	out := &Response{Text: text, Model: model}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.CachedTokens = int(resp.UsageMetadata.CachedContentTokenCount)
	}
	return out, nil
}

// CompleteWithCacheablePrefix folds the instruction prompt into the user
// message; context caching is not request-controlled here.
func (p *GeminiProvider) CompleteWithCacheablePrefix(ctx context.Context, req PrefixRequest) (*Response, error) {
	return p.Complete(ctx, Request{
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.InstructionPrompt + "\n\n" + req.DynamicContent,
		Model:        req.Model,
		Tier:         req.Tier,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		JSONMode:     req.JSONMode,
	})
}
