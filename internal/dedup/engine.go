package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

// DefaultSimilarityThreshold is the cosine-similarity floor for the
// similarity pass, per spec.
const DefaultSimilarityThreshold = 0.85

// Config tunes the engine's similarity pass.
type Config struct {
	SimilarityThreshold float64
}

// DefaultConfig returns the spec's default tuning.
func DefaultConfig() Config {
	return Config{SimilarityThreshold: DefaultSimilarityThreshold}
}

// Stats summarises one Deduplicate invocation.
type Stats struct {
	TweetsProcessed   int                 `json:"tweets_processed"`
	ExactGroups       int                 `json:"exact_groups"`
	SimilarGroups     int                 `json:"similar_groups"`
	Groups            []models.DedupGroup `json:"groups"`
	SimilarityWarning string              `json:"similarity_warning,omitempty"`
}

// Engine implements the Dedup Engine: exact-fingerprint grouping followed
// by a TF-IDF/cosine similarity pass over the remainder, persisted
// atomically per invocation.
type Engine struct {
	tweets store.TweetRepository
	groups store.DedupRepository
	cfg    Config
	logger *slog.Logger
}

// New constructs an Engine.
func New(tweets store.TweetRepository, groups store.DedupRepository, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{tweets: tweets, groups: groups, cfg: cfg, logger: logger}
}

// Deduplicate groups tweetIDs into Dedup Groups. Tweets already in a group
// are skipped unless forceRefresh is set, in which case their existing
// groups are deleted (back-references cleared) before re-running.
func (e *Engine) Deduplicate(ctx context.Context, tweetIDs []string, forceRefresh bool) (Stats, error) {
	if len(tweetIDs) == 0 {
		return Stats{}, nil
	}

	tweets, err := e.tweets.GetByIDs(ctx, tweetIDs)
	if err != nil {
		return Stats{}, fmt.Errorf("loading tweets: %w", err)
	}

	if forceRefresh {
		existing, err := e.groups.GroupsForTweets(ctx, tweetIDs)
		if err != nil {
			return Stats{}, fmt.Errorf("loading existing groups: %w", err)
		}
		for _, g := range existing {
			if err := e.groups.DeleteGroup(ctx, g.GroupID); err != nil {
				return Stats{}, fmt.Errorf("deleting group %s for refresh: %w", g.GroupID, err)
			}
		}
	} else {
		tweets = excludeGrouped(tweets)
	}

	if len(tweets) == 0 {
		return Stats{TweetsProcessed: 0}, nil
	}

	now := time.Now().UTC()
	stats := Stats{TweetsProcessed: len(tweets)}
	var allGroups []models.DedupGroup

	exact := exactGroups(tweets)
	matched := make(map[string]bool)
	for _, bucket := range exact {
		g := buildGroup(bucket, models.DedupExact, nil, now)
		allGroups = append(allGroups, g)
		for _, tw := range bucket {
			matched[tw.TweetID] = true
		}
	}
	stats.ExactGroups = len(exact)

	remaining := make([]models.Tweet, 0, len(tweets))
	for _, tw := range tweets {
		if !matched[tw.TweetID] {
			remaining = append(remaining, tw)
		}
	}

	similarGroups, warnErr := e.similarityPass(remaining, now)
	if warnErr != nil {
		stats.SimilarityWarning = warnErr.Error()
		e.logger.Warn("similarity pass failed, exact-pass groups still committed", "error", warnErr)
	} else {
		allGroups = append(allGroups, similarGroups...)
		stats.SimilarGroups = len(similarGroups)
	}

	if err := e.groups.SaveGroups(ctx, allGroups); err != nil {
		return Stats{}, fmt.Errorf("saving dedup groups: %w", err)
	}

	stats.Groups = allGroups
	return stats, nil
}

func (e *Engine) similarityPass(tweets []models.Tweet, now time.Time) ([]models.DedupGroup, error) {
	if len(tweets) < 2 {
		return nil, nil
	}

	docs := make([]string, len(tweets))
	for i, tw := range tweets {
		docs[i] = preprocess(tw.Text)
	}

	matrix := similarityMatrix(docs)
	threshold := e.cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	clusters, minSims := singleLinkageClusters(matrix, threshold)

	groups := make([]models.DedupGroup, 0, len(clusters))
	for i, idxs := range clusters {
		members := make([]models.Tweet, len(idxs))
		for j, idx := range idxs {
			members[j] = tweets[idx]
		}
		score := minSims[i]
		g := buildGroup(members, models.DedupSimilar, &score, now)
		groups = append(groups, g)
	}
	return groups, nil
}

// buildGroup picks the representative (earliest created_at, ties broken
// by smallest tweet_id) and constructs a new Dedup Group.
func buildGroup(members []models.Tweet, dedupType models.DedupType, similarity *float64, now time.Time) models.DedupGroup {
	sorted := append([]models.Tweet(nil), members...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].TweetID < sorted[j].TweetID
	})

	ids := make([]string, len(sorted))
	for i, tw := range sorted {
		ids[i] = tw.TweetID
	}

	return models.DedupGroup{
		GroupID:               uuid.New().String(),
		RepresentativeTweetID: sorted[0].TweetID,
		DedupType:             dedupType,
		SimilarityScore:       similarity,
		TweetIDs:              ids,
		CreatedAt:             now,
	}
}

func excludeGrouped(tweets []models.Tweet) []models.Tweet {
	out := make([]models.Tweet, 0, len(tweets))
	for _, tw := range tweets {
		if tw.DedupGroupID == nil {
			out = append(out, tw)
		}
	}
	return out
}
