package models

import (
	"time"
	"unicode/utf8"
)

// Summary is the per-tweet bilingual summary + translation record produced
// by the Summariser, or a pass-through of short original text.
type Summary struct {
	SummaryID          string    `json:"summary_id"`
	TweetID            string    `json:"tweet_id"`
	SummaryText        string    `json:"summary_text"`
	TranslationText    *string   `json:"translation_text,omitempty"`
	ModelProvider      string    `json:"model_provider"`
	ModelName          string    `json:"model_name"`
	PromptTokens       int       `json:"prompt_tokens"`
	CompletionTokens   int       `json:"completion_tokens"`
	TotalTokens        int       `json:"total_tokens"`
	CostUSD            float64   `json:"cost_usd"`
	Cached             bool      `json:"cached"`
	IsGeneratedSummary bool      `json:"is_generated_summary"`
	ContentHash        string    `json:"content_hash"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

const summaryMaxLength = 500

// Validate checks the invariants from the data model: total_tokens equals
// prompt+completion, and pass-through summaries carry zero cost/tokens.
func (s *Summary) Validate() error {
	if utf8.RuneCountInString(s.SummaryText) > summaryMaxLength {
		return errf("summary_text exceeds %d characters", summaryMaxLength)
	}
	if s.TotalTokens != s.PromptTokens+s.CompletionTokens {
		return errf("total_tokens must equal prompt_tokens + completion_tokens")
	}
	if !s.IsGeneratedSummary && (s.CostUSD != 0 || s.TotalTokens != 0) {
		return errf("pass-through summaries must carry zero cost and zero tokens")
	}
	return nil
}
