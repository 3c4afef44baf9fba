package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/llm"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

// BatchResult aggregates one Summarise invocation.
type BatchResult struct {
	TotalTweets       int            `json:"total_tweets"`
	TotalGroups       int            `json:"total_groups"`
	IndependentTweets int            `json:"independent_tweets"`
	CacheHits         int            `json:"cache_hits"`
	CacheMisses       int            `json:"cache_misses"`
	TotalTokens       int            `json:"total_tokens"`
	TotalCostUSD      float64        `json:"total_cost_usd"`
	ProvidersUsed     map[string]int `json:"providers_used"`
	ProcessingTimeMs  int64          `json:"processing_time_ms"`
	// Failures maps a representative/standalone tweet_id to the error
	// that aborted its summarisation; the batch itself still succeeds.
	Failures map[string]string `json:"failures,omitempty"`
}

// Summariser implements §4.6: content-hash cache keying, the smart
// length policy, a bounded worker pool calling the LLM Router twice per
// unit of work (summary then translation), and aggregate cost/token
// accounting.
type Summariser struct {
	tweets    store.TweetRepository
	groups    store.DedupRepository
	summaries store.SummaryRepository
	router    *llm.Router
	cfg       Config
	cache     *cache
	logger    *slog.Logger
}

// New constructs a Summariser.
func New(tweets store.TweetRepository, groups store.DedupRepository, summaries store.SummaryRepository, router *llm.Router, cfg Config, logger *slog.Logger) *Summariser {
	return &Summariser{
		tweets:    tweets,
		groups:    groups,
		summaries: summaries,
		router:    router,
		cfg:       cfg,
		cache:     newCache(),
		logger:    logger,
	}
}

// unit is one piece of summarisation work: either a standalone tweet or a
// dedup group's representative.
type unit struct {
	tweet       models.Tweet
	group       *models.DedupGroup
	contentHash string
}

// Summarise produces Summary Records for tweetIDs. Group members that are
// not their group's representative are skipped — they share the
// representative's cache entry for subsequent lookups, per §4.6 step 2.
func (s *Summariser) Summarise(ctx context.Context, tweetIDs []string, forceRefresh bool) (BatchResult, error) {
	result := BatchResult{ProvidersUsed: make(map[string]int), Failures: make(map[string]string)}
	if len(tweetIDs) == 0 {
		return result, nil
	}

	start := time.Now()

	tweets, err := s.tweets.GetByIDs(ctx, tweetIDs)
	if err != nil {
		return result, fmt.Errorf("loading tweets: %w", err)
	}
	result.TotalTweets = len(tweets)

	units, err := s.buildUnits(ctx, tweets)
	if err != nil {
		return result, fmt.Errorf("partitioning tweets: %w", err)
	}

	jobs := make([]func() unitOutcome, len(units))
	for i, u := range units {
		u := u
		jobs[i] = func() unitOutcome { return s.process(ctx, u, forceRefresh) }
	}
	outcomes := runPool(s.cfg.MaxConcurrentRequests, jobs)

	for _, o := range outcomes {
		if o.err != nil {
			result.Failures[o.tweetID] = o.err.Error()
			continue
		}
		if o.group != nil {
			result.TotalGroups++
		} else {
			result.IndependentTweets++
		}
		if o.cached {
			result.CacheHits++
		} else if o.generated {
			result.CacheMisses++
		}
		result.TotalTokens += o.summary.TotalTokens
		result.TotalCostUSD += o.summary.CostUSD
		if o.generated {
			result.ProvidersUsed[o.summary.ModelProvider]++
		}
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// buildUnits partitions tweets into dedup-group representatives and
// standalone tweets, fetching each referenced group at most once.
func (s *Summariser) buildUnits(ctx context.Context, tweets []models.Tweet) ([]unit, error) {
	groupCache := make(map[string]*models.DedupGroup)
	var units []unit

	for _, tw := range tweets {
		if tw.DedupGroupID == nil {
			units = append(units, unit{tweet: tw, contentHash: ContentHash(tw, nil)})
			continue
		}

		groupID := *tw.DedupGroupID
		group, ok := groupCache[groupID]
		if !ok {
			g, err := s.groups.GetGroup(ctx, groupID)
			if err != nil {
				return nil, fmt.Errorf("loading dedup group %s: %w", groupID, err)
			}
			group = g
			groupCache[groupID] = group
		}

		if tw.TweetID != group.RepresentativeTweetID {
			continue
		}
		units = append(units, unit{tweet: tw, group: group, contentHash: ContentHash(tw, group)})
	}

	return units, nil
}

type unitOutcome struct {
	tweetID   string
	group     *models.DedupGroup
	summary   models.Summary
	cached    bool
	generated bool
	err       error
}

// process computes and persists the Summary Record for one unit of work:
// pass-through for short text, cache hit, or a fresh pair of LLM calls.
func (s *Summariser) process(ctx context.Context, u unit, forceRefresh bool) unitOutcome {
	outcome := unitOutcome{tweetID: u.tweet.TweetID, group: u.group}

	text := u.tweet.Text
	now := time.Now().UTC()

	if utf8.RuneCountInString(text) < s.cfg.MinTweetLengthForSummary {
		summary := models.Summary{
			SummaryID:          uuid.New().String(),
			TweetID:            u.tweet.TweetID,
			SummaryText:        text,
			IsGeneratedSummary: false,
			ContentHash:        u.contentHash,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.summaries.Upsert(ctx, summary); err != nil {
			outcome.err = fmt.Errorf("persisting pass-through summary for %s: %w", u.tweet.TweetID, err)
			return outcome
		}
		outcome.summary = summary
		outcome.generated = false
		outcome.cached = false
		return outcome
	}

	if !forceRefresh {
		if cached, ok := s.cache.get(u.contentHash); ok {
			summary := summaryFromCache(u, cached, now)
			summary.Cached = true
			if err := s.summaries.Upsert(ctx, summary); err != nil {
				outcome.err = fmt.Errorf("persisting cached summary for %s: %w", u.tweet.TweetID, err)
				return outcome
			}
			outcome.summary = summary
			outcome.cached = true
			outcome.generated = true
			return outcome
		}
	}

	minLen, maxLen := summaryLengthBounds(utf8.RuneCountInString(text), s.cfg)

	summaryResp, err := s.router.Complete(ctx, buildSummaryPrompt(text, minLen, maxLen))
	if err != nil {
		outcome.err = classifyBatchFailure(u.tweet.TweetID, err)
		return outcome
	}

	translationResp, err := s.router.Complete(ctx, buildTranslationPrompt(summaryResp.Content))
	if err != nil {
		outcome.err = classifyBatchFailure(u.tweet.TweetID, err)
		return outcome
	}

	s.cache.put(u.contentHash, cachedResult{Summary: summaryResp, Translation: translationResp})

	translation := translationResp.Content
	summary := models.Summary{
		SummaryID:          uuid.New().String(),
		TweetID:            u.tweet.TweetID,
		SummaryText:        summaryResp.Content,
		TranslationText:    &translation,
		ModelProvider:      summaryResp.Provider,
		ModelName:          summaryResp.Model,
		PromptTokens:        summaryResp.PromptTokens + translationResp.PromptTokens,
		CompletionTokens:    summaryResp.CompletionTokens + translationResp.CompletionTokens,
		TotalTokens:         summaryResp.TotalTokens + translationResp.TotalTokens,
		CostUSD:             summaryResp.CostUSD + translationResp.CostUSD,
		Cached:              false,
		IsGeneratedSummary:  true,
		ContentHash:         u.contentHash,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		outcome.err = fmt.Errorf("persisting summary for %s: %w", u.tweet.TweetID, err)
		return outcome
	}

	outcome.summary = summary
	outcome.generated = true
	outcome.cached = false
	return outcome
}

func summaryFromCache(u unit, c cachedResult, now time.Time) models.Summary {
	translation := c.Translation.Content
	return models.Summary{
		SummaryID:          uuid.New().String(),
		TweetID:            u.tweet.TweetID,
		SummaryText:        c.Summary.Content,
		TranslationText:    &translation,
		ModelProvider:      c.Summary.Provider,
		ModelName:          c.Summary.Model,
		IsGeneratedSummary: true,
		ContentHash:        u.contentHash,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// classifyBatchFailure records a task-level failure without aborting the
// batch, per §7's AllProvidersFailed propagation policy.
func classifyBatchFailure(tweetID string, err error) error {
	if apperr.Is(err, apperr.ErrAllProvidersFailed) {
		return fmt.Errorf("summarising %s: %w", tweetID, err)
	}
	return fmt.Errorf("summarising %s: %w", tweetID, apperr.ErrInternal)
}
