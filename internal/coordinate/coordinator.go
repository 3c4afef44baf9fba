// Package coordinate implements the Scrape Coordinator: fans out a scrape
// across followed usernames under a semaphore, persists new tweets, and
// optionally kicks off dedup + summarisation as a background task.
package coordinate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/dedup"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/scraper"
	"github.com/xfeed/xfeed/internal/store"
	"github.com/xfeed/xfeed/internal/summarize"
)

// ScraperClient is the upstream tweet fetcher, satisfied by *scraper.Client.
type ScraperClient interface {
	FetchUserTweets(ctx context.Context, username string, limit int) ([]models.Tweet, error)
}

// DedupEngine is the post-processing hook's first stage, satisfied by
// *dedup.Engine.
type DedupEngine interface {
	Deduplicate(ctx context.Context, tweetIDs []string, forceRefresh bool) (dedup.Stats, error)
}

// Summariser is the post-processing hook's second stage, satisfied by
// *summarize.Summariser.
type Summariser interface {
	Summarise(ctx context.Context, tweetIDs []string, forceRefresh bool) (summarize.BatchResult, error)
}

// TaskRegistry lets the Coordinator hand the post-processing hook off to a
// background task without blocking ScrapeUsers' return.
type TaskRegistry interface {
	Create(taskType string) string
	Go(taskID string, fn func(ctx context.Context) (interface{}, error))
}

// Config tunes the Coordinator's fan-out and post-processing behaviour.
type Config struct {
	MaxConcurrentScrapes      int
	AutoSummarizationEnabled  bool
	AutoSummarizationBatchSize int
}

// DefaultConfig returns the spec's default tuning.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentScrapes:       3,
		AutoSummarizationEnabled:   true,
		AutoSummarizationBatchSize: 50,
	}
}

// Coordinator implements §4.4: orchestrates the Scraper Client, Store, and
// the dedup/summarise post-processing hook.
type Coordinator struct {
	scraper    ScraperClient
	tweets     store.TweetRepository
	fetchStats store.FetchStatsRepository
	dedup      DedupEngine
	summariser Summariser
	tasks      TaskRegistry
	cfg        Config
	logger     *slog.Logger
}

// New constructs a Coordinator. tasks may be nil, in which case the
// auto_summarization hook is skipped entirely regardless of Config.
func New(sc ScraperClient, tweets store.TweetRepository, fetchStats store.FetchStatsRepository, dedup DedupEngine, summariser Summariser, tasks TaskRegistry, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		scraper:    sc,
		tweets:     tweets,
		fetchStats: fetchStats,
		dedup:      dedup,
		summariser: summariser,
		tasks:      tasks,
		cfg:        cfg,
		logger:     logger,
	}
}

// ScrapeUsers fans out a scrape over usernames, bounded by
// cfg.MaxConcurrentScrapes. A fatal 401 from the Scraper Client aborts the
// whole run; any other per-user failure is recorded and the run continues.
// overrideLimit, when given, replaces the adaptive per-user fetch size
// (§4.3) for every username in this run; callers normally omit it and let
// each username's own fetch history drive its limit.
func (c *Coordinator) ScrapeUsers(ctx context.Context, usernames []string, overrideLimit ...int) (ScrapeResult, error) {
	if len(usernames) == 0 {
		return ScrapeResult{}, fmt.Errorf("usernames must be non-empty: %w", apperr.ErrValidation)
	}

	var limit *int
	if len(overrideLimit) > 0 {
		l := overrideLimit[0]
		limit = &l
	}

	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatal error
	var fatalOnce sync.Once

	outcomes := make([]userOutcome, len(usernames))
	sem := make(chan struct{}, max(1, c.cfg.MaxConcurrentScrapes))
	var wg sync.WaitGroup

	for i, username := range usernames {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, username string) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := c.scrapeOne(runCtx, username, limit)
			if outcome.err != nil && apperr.Is(outcome.err, apperr.ErrAuthRequired) {
				fatalOnce.Do(func() {
					fatal = outcome.err
					cancel()
				})
			}
			outcomes[i] = outcome
		}(i, username)
	}

	wg.Wait()

	if fatal != nil {
		return ScrapeResult{}, fmt.Errorf("aborting scrape run: %w", fatal)
	}

	result := aggregate(outcomes, time.Since(start))

	if c.cfg.AutoSummarizationEnabled && result.NewTweets > 0 && c.tasks != nil {
		result.SummarizationTaskIDs = c.enqueuePostProcessing(ctx, newTweetIDs(outcomes))
	}

	return result, nil
}

// scrapeOne executes steps 1-5 of §4.4 for a single username. overrideLimit,
// when non-nil, takes precedence over the adaptive limit derived from the
// username's persisted fetch stats.
func (c *Coordinator) scrapeOne(ctx context.Context, username string, overrideLimit *int) userOutcome {
	outcome := userOutcome{username: username}

	stats, err := c.fetchStats.Get(ctx, username)
	if err != nil {
		outcome.err = fmt.Errorf("loading fetch stats for %s: %w", username, err)
		return outcome
	}

	limit := scraper.NextLimit(stats)
	if overrideLimit != nil {
		limit = *overrideLimit
	}

	tweets, err := c.scraper.FetchUserTweets(ctx, username, limit)
	if err != nil {
		outcome.err = fmt.Errorf("fetching tweets for %s: %w", username, err)
		return outcome
	}

	var newIDs []string
	for _, tw := range tweets {
		if err := tw.Validate(); err != nil {
			c.logger.Warn("dropping invalid tweet", "tweet_id", tw.TweetID, "author", username, "error", err)
			continue
		}

		isNew, err := c.tweets.Upsert(ctx, tw)
		if err != nil {
			c.logger.Error("upsert failed", "tweet_id", tw.TweetID, "author", username, "error", err)
			continue
		}

		if isNew {
			outcome.new++
			newIDs = append(newIDs, tw.TweetID)
			if tw.ReferencedTweetID != nil {
				if _, err := c.tweets.GetByID(ctx, *tw.ReferencedTweetID); apperr.Is(err, apperr.ErrNotFound) {
					if err := c.tweets.ClearReference(ctx, tw.TweetID); err != nil {
						c.logger.Error("clearing dangling reference failed", "tweet_id", tw.TweetID, "error", err)
					}
				}
			}
		} else {
			outcome.skipped++
		}
	}

	outcome.fetched = len(tweets)
	outcome.newIDs = newIDs

	updated := scraper.UpdateStats(stats, len(tweets), outcome.new)
	updated.Username = username
	updated.LastFetchAt = time.Now().UTC()
	if err := c.fetchStats.Upsert(ctx, updated); err != nil {
		c.logger.Error("updating fetch stats failed", "username", username, "error", err)
	}

	return outcome
}

// enqueuePostProcessing splits newIDs into batches of at most
// AutoSummarizationBatchSize and hands each batch to the Task Registry as a
// dedup-then-summarise background task.
func (c *Coordinator) enqueuePostProcessing(ctx context.Context, newIDs []string) []string {
	batchSize := c.cfg.AutoSummarizationBatchSize
	if batchSize < 1 {
		batchSize = len(newIDs)
	}

	var taskIDs []string
	for start := 0; start < len(newIDs); start += batchSize {
		end := min(start+batchSize, len(newIDs))
		batch := newIDs[start:end]

		taskID := c.tasks.Create("auto_summarization")
		taskIDs = append(taskIDs, taskID)

		c.tasks.Go(taskID, func(taskCtx context.Context) (interface{}, error) {
			if _, err := c.dedup.Deduplicate(taskCtx, batch, false); err != nil {
				return nil, fmt.Errorf("auto dedup: %w", err)
			}
			result, err := c.summariser.Summarise(taskCtx, batch, false)
			if err != nil {
				return nil, fmt.Errorf("auto summarise: %w", err)
			}
			return result, nil
		})
	}

	return taskIDs
}
