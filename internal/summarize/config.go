package summarize

// Config tunes the Summariser's length policy and worker-pool fan-out, the
// concrete enumeration of spec.md §9's "dynamically named config options"
// at the batch level.
type Config struct {
	MaxConcurrentRequests   int
	MinTweetLengthForSummary int
	SummaryMinLengthRatio   float64
	SummaryMaxLengthRatio   float64
	MaxSummaryLength        int
}

// DefaultConfig returns the spec's default tuning.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRequests:    5,
		MinTweetLengthForSummary: 30,
		SummaryMinLengthRatio:    0.5,
		SummaryMaxLengthRatio:    1.5,
		MaxSummaryLength:         500,
	}
}
