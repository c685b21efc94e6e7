package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI model names per tier.
const (
	openaiFastModel     = "gpt-4o-mini"
	openaiStandardModel = "gpt-4o"
	openaiAdvancedModel = "o1"
)

// OpenAIProvider backs the Provider interface with the OpenAI chat API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

func NewOpenAIProvider(apiKey, defaultModel string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey), defaultModel: defaultModel}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{
		SystemPrompt:     true,
		PromptCaching:    false, // Applied automatically server-side; not request-controlled
		JSONMode:         true,
		Streaming:        true,
		MaxContextTokens: 128_000,
	}
}

func (p *OpenAIProvider) ModelForTier(tier ModelTier) string {
	switch tier {
	case TierFast:
		return openaiFastModel
	case TierAdvanced:
		return openaiAdvancedModel
	default:
		return openaiStandardModel
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
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

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	cr := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		cr.Temperature = req.Temperature
	}
	if req.JSONMode {
		cr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// CompleteWithCacheablePrefix has no request-level caching here; the
// instruction prompt is folded into the user message.
func (p *OpenAIProvider) CompleteWithCacheablePrefix(ctx context.Context, req PrefixRequest) (*Response, error) {
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
