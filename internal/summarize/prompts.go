package summarize

import (
	"fmt"

	"github.com/xfeed/xfeed/internal/llm"
)

const summarySystemPrompt = "You are a concise bilingual news summariser for a social media monitoring feed."

// buildSummaryPrompt asks for a Chinese-language summary within
// [minLen, maxLen] characters, per the smart length policy.
func buildSummaryPrompt(text string, minLen, maxLen int) llm.Prompt {
	return llm.Prompt{
		SystemPrompt: summarySystemPrompt,
		UserPrompt: fmt.Sprintf(
			"Summarise the following post in Chinese, using between %d and %d characters:\n\n%s",
			minLen, maxLen, text,
		),
		MaxTokens:   512,
		Temperature: 0.3,
	}
}

// buildTranslationPrompt asks for an English translation of the Chinese
// summary, the second half of the bilingual Summary Record.
func buildTranslationPrompt(summaryText string) llm.Prompt {
	return llm.Prompt{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   "Translate the following Chinese summary into natural English:\n\n" + summaryText,
		MaxTokens:    512,
		Temperature:  0.3,
	}
}

// summaryLengthBounds computes the target summary length window from the
// original text length, capped at MaxSummaryLength.
func summaryLengthBounds(textLen int, cfg Config) (minLen, maxLen int) {
	minLen = ceilInt(float64(textLen) * cfg.SummaryMinLengthRatio)
	maxLen = ceilInt(float64(textLen) * cfg.SummaryMaxLengthRatio)
	if maxLen > cfg.MaxSummaryLength {
		maxLen = cfg.MaxSummaryLength
	}
	if minLen > maxLen {
		minLen = maxLen
	}
	return minLen, maxLen
}

func ceilInt(f float64) int {
	i := int(f)
	if float64(i) < f {
		i++
	}
	return i
}
