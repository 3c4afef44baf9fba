package llm

// Rates holds a provider's per-1K-token pricing, the "dynamically named
// config options" of the source distilled into a concrete struct per
// SPEC_FULL's §9 note.
type Rates struct {
	InPer1K  float64
	OutPer1K float64
}

// Cost computes the USD cost of one call from token counts and the
// provider's per-1K rate.
func Cost(promptTokens, completionTokens int, rates Rates) float64 {
	return float64(promptTokens)/1000*rates.InPer1K + float64(completionTokens)/1000*rates.OutPer1K
}

// Default per-1K-token rates. cmd/server passes these to the providers as
// they are; no configuration setting overrides them. Figures are
// illustrative list prices for the default
// models in internal/config.Config.
var (
	DefaultOpenRouterRates = Rates{InPer1K: 0.00015, OutPer1K: 0.0006}
	DefaultMiniMaxRates    = Rates{InPer1K: 0.0001, OutPer1K: 0.0001}
	DefaultOpenSourceRates = Rates{InPer1K: 0, OutPer1K: 0}
	DefaultAnthropicRates  = Rates{InPer1K: 0.0008, OutPer1K: 0.004}
)
