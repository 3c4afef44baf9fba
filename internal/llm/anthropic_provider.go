package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider speaks Anthropic's native Messages API rather than the
// OpenAI-compatible shape, so it implements Provider directly instead of
// going through OpenAIProvider. Promoted from the teacher's indirect
// enrichment/forecasting/strategy backend to a first-class Router link,
// used as the chain's optional tail when ANTHROPIC_API_KEY is set.
type AnthropicProvider struct {
	name      string
	client    anthropic.Client
	model     string
	timeout   time.Duration
	rates     Rates
	maxTokens int64
}

// NewAnthropicProvider constructs the Anthropic provider.
func NewAnthropicProvider(apiKey, model string, timeout time.Duration, rates Rates) *AnthropicProvider {
	return &AnthropicProvider{
		name:      "anthropic",
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		timeout:   timeout,
		rates:     rates,
		maxTokens: 4096,
	}
}

func (p *AnthropicProvider) Name() string { return p.name }

func (p *AnthropicProvider) Complete(ctx context.Context, prompt Prompt) Result {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(float64(prompt.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.UserPrompt)),
		},
	}
	if prompt.SystemPrompt != "" {
		req.System = []anthropic.TextBlockParam{{Text: prompt.SystemPrompt}}
	}

	message, err := p.client.Messages.New(callCtx, req)
	if err != nil {
		return p.classify(err)
	}
	if len(message.Content) == 0 {
		return permanent(fmt.Errorf("%s: empty response", p.name))
	}

	promptTokens := int(message.Usage.InputTokens)
	completionTokens := int(message.Usage.OutputTokens)

	return ok(Response{
		Content:          message.Content[0].Text,
		Model:            p.model,
		Provider:         p.name,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		CostUSD:          Cost(promptTokens, completionTokens, p.rates),
	})
}

func (p *AnthropicProvider) classify(err error) Result {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status == 429 || status == 503 || status == 504 {
			return transient(fmt.Errorf("%s: http %d: %w", p.name, status, err))
		}
		return permanent(fmt.Errorf("%s: http %d: %w", p.name, status, err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transient(fmt.Errorf("%s: %w", p.name, err))
	}
	return transient(fmt.Errorf("%s: network error: %w", p.name, err))
}
