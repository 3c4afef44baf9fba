package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/store"
	"github.com/xfeed/xfeed/internal/summarize"
)

// Summariser is satisfied by *summarize.Summariser.
type Summariser interface {
	Summarise(ctx context.Context, tweetIDs []string, forceRefresh bool) (summarize.BatchResult, error)
}

// SummaryHandler serves the /api/summaries endpoints of §6.
type SummaryHandler struct {
	summariser Summariser
	summaries  store.SummaryRepository
	tasks      TaskRegistry
	logger     *slog.Logger
}

// NewSummaryHandler constructs a SummaryHandler.
func NewSummaryHandler(summariser Summariser, summaries store.SummaryRepository, tasks TaskRegistry, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{summariser: summariser, summaries: summaries, tasks: tasks, logger: logger}
}

type summaryBatchRequest struct {
	TweetIDs     []string `json:"tweet_ids"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

type summaryBatchResponse struct {
	TaskID string `json:"task_id"`
}

// Batch handles POST /api/summaries/batch.
func (h *SummaryHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req summaryBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	if len(req.TweetIDs) == 0 {
		writeError(w, h.logger, fmt.Errorf("tweet_ids must be non-empty: %w", apperr.ErrValidation))
		return
	}

	taskID := h.tasks.Create("summarize")
	h.tasks.Go(taskID, func(ctx context.Context) (interface{}, error) {
		result, err := h.summariser.Summarise(ctx, req.TweetIDs, req.ForceRefresh)
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	writeJSON(w, h.logger, http.StatusAccepted, summaryBatchResponse{TaskID: taskID})
}

// GetForTweet handles GET /api/summaries/tweets/{tweet_id}.
func (h *SummaryHandler) GetForTweet(w http.ResponseWriter, r *http.Request, tweetID string) {
	summary, err := h.summaries.GetByTweetID(r.Context(), tweetID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summary)
}

// Regenerate handles POST /api/summaries/tweets/{tweet_id}/regenerate.
func (h *SummaryHandler) Regenerate(w http.ResponseWriter, r *http.Request, tweetID string) {
	result, err := h.summariser.Summarise(r.Context(), []string{tweetID}, true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	summary, err := h.summaries.GetByTweetID(r.Context(), tweetID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("regenerated summary", "tweet_id", tweetID, "cost_usd", result.TotalCostUSD)
	writeJSON(w, h.logger, http.StatusOK, summary)
}

// Stats handles GET /api/summaries/stats?start_date=&end_date=.
func (h *SummaryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("start_date"))
	if err != nil {
		writeBadRequest(w, h.logger, "invalid start_date")
		return
	}
	end, err := parseDate(q.Get("end_date"))
	if err != nil {
		writeBadRequest(w, h.logger, "invalid end_date")
		return
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	stats, err := h.summaries.Stats(r.Context(), start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", v)
}
