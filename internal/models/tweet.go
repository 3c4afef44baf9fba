package models

import (
	"fmt"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
)

// ReferenceType classifies how a tweet relates to another tweet it carries
// a denormalised copy of.
type ReferenceType string

const (
	ReferenceRetweeted ReferenceType = "retweeted"
	ReferenceQuoted    ReferenceType = "quoted"
	ReferenceRepliedTo ReferenceType = "replied_to"
)

// MediaType categorises an attached media item.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "animated_gif"
)

// Media is one attachment on a tweet, ordered as returned by the upstream
// provider.
type Media struct {
	Key    string    `json:"key"`
	Type   MediaType `json:"type"`
	URL    string    `json:"url"`
	Width  *int      `json:"width,omitempty"`
	Height *int      `json:"height,omitempty"`
}

// Tweet is the canonical, immutable-once-written record of a single post
// fetched from the upstream platform. The only mutable field after the
// initial insert is DedupGroupID, a nullable back-reference maintained by
// the dedup engine.
type Tweet struct {
	TweetID                 string         `json:"tweet_id"`
	Text                    string         `json:"text"`
	CreatedAt               time.Time      `json:"created_at"`
	AuthorUsername          string         `json:"author_username"`
	AuthorDisplayName       string         `json:"author_display_name"`
	ReferencedTweetID       *string        `json:"referenced_tweet_id,omitempty"`
	ReferenceType           *ReferenceType `json:"reference_type,omitempty"`
	ReferencedTweetText     string         `json:"referenced_tweet_text,omitempty"`
	ReferencedTweetMedia    []Media        `json:"referenced_tweet_media,omitempty"`
	ReferencedTweetAuthor   string         `json:"referenced_tweet_author_username,omitempty"`
	Media                   []Media        `json:"media,omitempty"`
	DedupGroupID            *string        `json:"dedup_group_id,omitempty"`
	DBCreatedAt             time.Time      `json:"db_created_at"`
}

// MaxTextLength is the hard cap on Tweet.Text, enforced during normalisation.
const MaxTextLength = 25000

// Validate checks the structural invariants required before a Tweet may be
// persisted: required fields present, text non-empty, reference_type set
// iff referenced_tweet_id is set.
func (t *Tweet) Validate() error {
	if t.TweetID == "" {
		return fmt.Errorf("tweet_id is required: %w", apperr.ErrValidation)
	}
	if t.AuthorUsername == "" {
		return fmt.Errorf("author_username is required: %w", apperr.ErrValidation)
	}
	if t.Text == "" {
		return fmt.Errorf("text must be non-empty after cleaning: %w", apperr.ErrValidation)
	}
	if len(t.Text) > MaxTextLength {
		return fmt.Errorf("text exceeds maximum length: %w", apperr.ErrValidation)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at must be parseable: %w", apperr.ErrValidation)
	}
	if (t.ReferencedTweetID != nil) != (t.ReferenceType != nil) {
		return fmt.Errorf("reference_type must be set iff referenced_tweet_id is set: %w", apperr.ErrValidation)
	}
	return nil
}
