package models

import "time"

// DedupType classifies how a group's members were judged duplicates.
type DedupType string

const (
	DedupExact   DedupType = "exact_duplicate"
	DedupSimilar DedupType = "similar_content"
)

// DedupGroup is the aggregate root produced by the dedup engine: a set of
// two or more tweets judged duplicates (exact) or similar (cosine above
// threshold), with a designated representative.
type DedupGroup struct {
	GroupID               string    `json:"group_id"`
	RepresentativeTweetID string    `json:"representative_tweet_id"`
	DedupType             DedupType `json:"dedup_type"`
	SimilarityScore       *float64  `json:"similarity_score,omitempty"`
	TweetIDs              []string  `json:"tweet_ids"`
	CreatedAt             time.Time `json:"created_at"`
}
