package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
	"github.com/xfeed/xfeed/internal/summarize"
)

type fakeSummariser struct {
	result summarize.BatchResult
	err    error
	calls  [][]string
}

func (f *fakeSummariser) Summarise(ctx context.Context, tweetIDs []string, forceRefresh bool) (summarize.BatchResult, error) {
	f.calls = append(f.calls, tweetIDs)
	return f.result, f.err
}

type fakeSummaryStore struct {
	byTweetID map[string]*models.Summary
	stats     map[string]store.ProviderStats
}

func (f *fakeSummaryStore) Upsert(ctx context.Context, s models.Summary) error {
	if f.byTweetID == nil {
		f.byTweetID = map[string]*models.Summary{}
	}
	f.byTweetID[s.TweetID] = &s
	return nil
}

func (f *fakeSummaryStore) GetByTweetID(ctx context.Context, tweetID string) (*models.Summary, error) {
	s, ok := f.byTweetID[tweetID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return s, nil
}

func (f *fakeSummaryStore) Stats(ctx context.Context, start, end time.Time) (map[string]store.ProviderStats, error) {
	return f.stats, nil
}

func TestSummaryHandler_Batch(t *testing.T) {
	summariser := &fakeSummariser{result: summarize.BatchResult{TotalTweets: 2}}
	summaries := &fakeSummaryStore{byTweetID: map[string]*models.Summary{}}
	h := NewSummaryHandler(summariser, summaries, newTestRegistry(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/summaries/batch", strings.NewReader(`{"tweet_ids":["t1","t2"]}`))
	w := httptest.NewRecorder()
	h.Batch(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
}

func TestSummaryHandler_GetForTweet(t *testing.T) {
	summaries := &fakeSummaryStore{byTweetID: map[string]*models.Summary{"t1": {SummaryID: "s1", TweetID: "t1"}}}
	h := NewSummaryHandler(&fakeSummariser{}, summaries, newTestRegistry(), testLogger())

	w := httptest.NewRecorder()
	h.GetForTweet(w, httptest.NewRequest(http.MethodGet, "/api/summaries/tweets/t1", nil), "t1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSummaryHandler_Regenerate(t *testing.T) {
	summariser := &fakeSummariser{}
	summaries := &fakeSummaryStore{byTweetID: map[string]*models.Summary{"t1": {SummaryID: "s1", TweetID: "t1"}}}
	h := NewSummaryHandler(summariser, summaries, newTestRegistry(), testLogger())

	w := httptest.NewRecorder()
	h.Regenerate(w, httptest.NewRequest(http.MethodPost, "/api/summaries/tweets/t1/regenerate", nil), "t1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(summariser.calls) != 1 || summariser.calls[0][0] != "t1" {
		t.Fatalf("unexpected summariser calls: %+v", summariser.calls)
	}
}

func TestSummaryHandler_Stats_DefaultsEndToNow(t *testing.T) {
	summaries := &fakeSummaryStore{stats: map[string]store.ProviderStats{"anthropic": {Count: 4}}}
	h := NewSummaryHandler(&fakeSummariser{}, summaries, newTestRegistry(), testLogger())

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/api/summaries/stats?start_date=2026-01-01", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSummaryHandler_Stats_InvalidDateIsBadRequest(t *testing.T) {
	h := NewSummaryHandler(&fakeSummariser{}, &fakeSummaryStore{}, newTestRegistry(), testLogger())

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/api/summaries/stats?start_date=not-a-date", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
