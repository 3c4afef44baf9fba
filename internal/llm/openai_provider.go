package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider speaks the OpenAI-compatible chat/completions API. The
// same type backs OpenRouter, MiniMax and OpenSource — each is just a
// ClientConfig.BaseURL override, following the teacher's single
// openai.Client usage generalised to a per-provider base URL.
type OpenAIProvider struct {
	name    string
	client  *openai.Client
	model   string
	timeout time.Duration
	rates   Rates
}

// NewOpenAIProvider constructs a provider for one OpenAI-compatible
// endpoint. baseURL may be empty to use the default OpenAI endpoint.
func NewOpenAIProvider(name, apiKey, baseURL, model string, timeout time.Duration, rates Rates) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		name:    name,
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		rates:   rates,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) Result {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt.UserPrompt},
	}
	if prompt.SystemPrompt != "" {
		messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt},
		}, messages...)
	}

	resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   prompt.MaxTokens,
		Temperature: prompt.Temperature,
	})
	if err != nil {
		return p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return permanent(fmt.Errorf("%s: empty response", p.name))
	}

	return ok(Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            p.model,
		Provider:         p.name,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostUSD:          Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, p.rates),
	})
}

// classify maps an OpenAI SDK error to transient or permanent per spec:
// 429/503/504/timeout/network are transient; 401/402 and any other 4xx
// are permanent.
func (p *OpenAIProvider) classify(err error) Result {
	status, ok := statusCode(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return transient(fmt.Errorf("%s: %w", p.name, err))
		}
		return transient(fmt.Errorf("%s: network error: %w", p.name, err))
	}

	switch {
	case status == 429 || status == 503 || status == 504:
		return transient(fmt.Errorf("%s: http %d: %w", p.name, status, err))
	default:
		return permanent(fmt.Errorf("%s: http %d: %w", p.name, status, err))
	}
}

func statusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
