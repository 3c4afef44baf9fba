package coordinate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/dedup"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/summarize"
)

type fakeScraperClient struct {
	byUser map[string][]models.Tweet
	err    map[string]error
	calls  map[string]int
	limits map[string]int
}

func newFakeScraperClient() *fakeScraperClient {
	return &fakeScraperClient{byUser: make(map[string][]models.Tweet), err: make(map[string]error), calls: make(map[string]int), limits: make(map[string]int)}
}

func (f *fakeScraperClient) FetchUserTweets(ctx context.Context, username string, limit int) ([]models.Tweet, error) {
	f.calls[username]++
	f.limits[username] = limit
	if err, ok := f.err[username]; ok {
		return nil, err
	}
	return f.byUser[username], nil
}

type fakeTweetRepo struct{ tweets map[string]models.Tweet }

func newFakeTweetRepo() *fakeTweetRepo { return &fakeTweetRepo{tweets: make(map[string]models.Tweet)} }

func (r *fakeTweetRepo) Upsert(ctx context.Context, tweet models.Tweet) (bool, error) {
	if _, exists := r.tweets[tweet.TweetID]; exists {
		return false, nil
	}
	r.tweets[tweet.TweetID] = tweet
	return true, nil
}
func (r *fakeTweetRepo) GetByID(ctx context.Context, tweetID string) (*models.Tweet, error) {
	tw, ok := r.tweets[tweetID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &tw, nil
}
func (r *fakeTweetRepo) GetByIDs(ctx context.Context, tweetIDs []string) ([]models.Tweet, error) {
	return nil, nil
}
func (r *fakeTweetRepo) List(ctx context.Context, page, pageSize int, author string) ([]models.Tweet, int, error) {
	return nil, 0, nil
}
func (r *fakeTweetRepo) ListFeed(ctx context.Context, since, until *time.Time, limit int) ([]models.Tweet, error) {
	return nil, nil
}
func (r *fakeTweetRepo) SetDedupGroup(ctx context.Context, tweetID string, groupID *string) error {
	return nil
}
func (r *fakeTweetRepo) ClearReference(ctx context.Context, tweetID string) error {
	tw := r.tweets[tweetID]
	tw.ReferencedTweetID = nil
	r.tweets[tweetID] = tw
	return nil
}

type fakeFetchStatsRepo struct{ stats map[string]models.FetchStats }

func newFakeFetchStatsRepo() *fakeFetchStatsRepo {
	return &fakeFetchStatsRepo{stats: make(map[string]models.FetchStats)}
}
func (r *fakeFetchStatsRepo) Get(ctx context.Context, username string) (models.FetchStats, error) {
	if s, ok := r.stats[username]; ok {
		return s, nil
	}
	return models.FetchStats{Username: username}, nil
}
func (r *fakeFetchStatsRepo) Upsert(ctx context.Context, stats models.FetchStats) error {
	r.stats[stats.Username] = stats
	return nil
}

type fakeDedupEngine struct{ calls int }

func (f *fakeDedupEngine) Deduplicate(ctx context.Context, tweetIDs []string, forceRefresh bool) (dedup.Stats, error) {
	f.calls++
	return dedup.Stats{TweetsProcessed: len(tweetIDs)}, nil
}

type fakeSummariser struct{ calls int }

func (f *fakeSummariser) Summarise(ctx context.Context, tweetIDs []string, forceRefresh bool) (summarize.BatchResult, error) {
	f.calls++
	return summarize.BatchResult{TotalTweets: len(tweetIDs)}, nil
}

type fakeTaskRegistry struct {
	created int
	ran     []string
}

func (f *fakeTaskRegistry) Create(taskType string) string {
	f.created++
	return fmt.Sprintf("task-%d", f.created)
}
func (f *fakeTaskRegistry) Go(taskID string, fn func(ctx context.Context) (interface{}, error)) {
	f.ran = append(f.ran, taskID)
	_, _ = fn(context.Background())
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestScrapeUsers_AggregatesNewAndSkipped(t *testing.T) {
	sc := newFakeScraperClient()
	now := time.Now()
	sc.byUser["alice"] = []models.Tweet{
		{TweetID: "t1", Text: "hello", AuthorUsername: "alice", CreatedAt: now},
		{TweetID: "t2", Text: "world", AuthorUsername: "alice", CreatedAt: now},
	}

	tweets := newFakeTweetRepo()
	tweets.tweets["t2"] = models.Tweet{TweetID: "t2"} // pre-existing, will be "skipped"

	fetchStats := newFakeFetchStatsRepo()
	tasks := &fakeTaskRegistry{}
	de := &fakeDedupEngine{}
	sm := &fakeSummariser{}

	cfg := DefaultConfig()
	cfg.AutoSummarizationEnabled = false
	c := New(sc, tweets, fetchStats, de, sm, tasks, cfg, testLogger())

	result, err := c.ScrapeUsers(context.Background(), []string{"alice"})
	if err != nil {
		t.Fatalf("ScrapeUsers() error = %v", err)
	}
	if result.TotalUsers != 1 || result.SuccessfulUsers != 1 || result.FailedUsers != 0 {
		t.Errorf("unexpected user counts: %+v", result)
	}
	if result.TotalTweets != 2 {
		t.Errorf("TotalTweets = %d, want 2", result.TotalTweets)
	}
	if result.NewTweets != 1 {
		t.Errorf("NewTweets = %d, want 1", result.NewTweets)
	}
	if result.SkippedTweets != 1 {
		t.Errorf("SkippedTweets = %d, want 1", result.SkippedTweets)
	}
}

func TestScrapeUsers_PerUserFailureDoesNotAbortOthers(t *testing.T) {
	sc := newFakeScraperClient()
	now := time.Now()
	sc.byUser["bob"] = []models.Tweet{{TweetID: "t1", Text: "hi", AuthorUsername: "bob", CreatedAt: now}}
	sc.err["alice"] = fmt.Errorf("upstream timeout: %w", apperr.ErrTransientUpstream)

	tweets := newFakeTweetRepo()
	fetchStats := newFakeFetchStatsRepo()
	cfg := DefaultConfig()
	cfg.AutoSummarizationEnabled = false
	c := New(sc, tweets, fetchStats, &fakeDedupEngine{}, &fakeSummariser{}, &fakeTaskRegistry{}, cfg, testLogger())

	result, err := c.ScrapeUsers(context.Background(), []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("ScrapeUsers() error = %v", err)
	}
	if result.FailedUsers != 1 || result.SuccessfulUsers != 1 {
		t.Errorf("expected 1 failed + 1 successful user, got %+v", result)
	}
	if _, ok := result.Errors["alice"]; !ok {
		t.Error("expected alice's error to be recorded")
	}
}

func TestScrapeUsers_Fatal401AbortsWholeRun(t *testing.T) {
	sc := newFakeScraperClient()
	sc.byUser["bob"] = []models.Tweet{{TweetID: "t1", Text: "hi", AuthorUsername: "bob", CreatedAt: time.Now()}}
	sc.err["alice"] = fmt.Errorf("unauthorized: %w", apperr.ErrAuthRequired)

	tweets := newFakeTweetRepo()
	fetchStats := newFakeFetchStatsRepo()
	cfg := DefaultConfig()
	cfg.MaxConcurrentScrapes = 1
	cfg.AutoSummarizationEnabled = false
	c := New(sc, tweets, fetchStats, &fakeDedupEngine{}, &fakeSummariser{}, &fakeTaskRegistry{}, cfg, testLogger())

	_, err := c.ScrapeUsers(context.Background(), []string{"alice", "bob"})
	if err == nil {
		t.Fatal("expected a fatal error for 401")
	}
	if !apperr.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("expected wrapped ErrAuthRequired, got %v", err)
	}
}

func TestScrapeUsers_AutoSummarizationEnqueuesTask(t *testing.T) {
	sc := newFakeScraperClient()
	sc.byUser["alice"] = []models.Tweet{{TweetID: "t1", Text: "hello", AuthorUsername: "alice", CreatedAt: time.Now()}}

	tweets := newFakeTweetRepo()
	fetchStats := newFakeFetchStatsRepo()
	de := &fakeDedupEngine{}
	sm := &fakeSummariser{}
	tasks := &fakeTaskRegistry{}

	cfg := DefaultConfig()
	c := New(sc, tweets, fetchStats, de, sm, tasks, cfg, testLogger())

	result, err := c.ScrapeUsers(context.Background(), []string{"alice"})
	if err != nil {
		t.Fatalf("ScrapeUsers() error = %v", err)
	}
	if len(result.SummarizationTaskIDs) != 1 {
		t.Fatalf("expected 1 summarization task, got %d", len(result.SummarizationTaskIDs))
	}
	if de.calls != 1 || sm.calls != 1 {
		t.Errorf("expected dedup and summarise to each run once, got dedup=%d summarise=%d", de.calls, sm.calls)
	}
}

func TestScrapeUsers_EmptyUsernamesIsValidationError(t *testing.T) {
	c := New(newFakeScraperClient(), newFakeTweetRepo(), newFakeFetchStatsRepo(), &fakeDedupEngine{}, &fakeSummariser{}, &fakeTaskRegistry{}, DefaultConfig(), testLogger())
	_, err := c.ScrapeUsers(context.Background(), nil)
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestScrapeUsers_OverrideLimitReplacesAdaptiveLimit(t *testing.T) {
	sc := newFakeScraperClient()
	fetchStats := newFakeFetchStatsRepo()
	c := New(sc, newFakeTweetRepo(), fetchStats, &fakeDedupEngine{}, &fakeSummariser{}, &fakeTaskRegistry{}, DefaultConfig(), testLogger())

	if _, err := c.ScrapeUsers(context.Background(), []string{"alice"}, 7); err != nil {
		t.Fatalf("ScrapeUsers() error = %v", err)
	}
	if sc.limits["alice"] != 7 {
		t.Errorf("limit used = %d, want 7 (override should win over the adaptive default)", sc.limits["alice"])
	}
}
