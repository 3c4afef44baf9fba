// Package llm implements the LLM Router: an ordered chain of
// OpenAI-compatible and Anthropic-native providers, walked with
// per-provider timeout, a single retry on transient failure, and immediate
// skip on permanent failure.
package llm

import "context"

// Prompt is the input to one provider call.
type Prompt struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// Response is a successful completion, with the usage/cost figures the
// Summariser persists on the Summary Record.
type Response struct {
	Content          string
	Model            string
	Provider         string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// ResultKind classifies a provider call's outcome, replacing
// exceptions-as-control-flow with a plain three-way switch.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultTransient
	ResultPermanent
)

// Result is the sum type a Provider returns: exactly one of a successful
// Response, a transient failure (retry once, then move on), or a
// permanent failure (move to the next provider immediately).
type Result struct {
	Kind     ResultKind
	Response Response
	Err      error
}

func ok(resp Response) Result          { return Result{Kind: ResultOK, Response: resp} }
func transient(err error) Result       { return Result{Kind: ResultTransient, Err: err} }
func permanent(err error) Result       { return Result{Kind: ResultPermanent, Err: err} }

// Provider is one link in the Router's chain.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt) Result
}
