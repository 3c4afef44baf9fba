package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

// TweetReader is the subset of store.TweetRepository the tweet/feed
// handlers need.
type TweetReader interface {
	GetByID(ctx context.Context, tweetID string) (*models.Tweet, error)
	List(ctx context.Context, page, pageSize int, author string) ([]models.Tweet, int, error)
	ListFeed(ctx context.Context, since, until *time.Time, limit int) ([]models.Tweet, error)
}

// TweetHandler serves GET /api/tweets, GET /api/tweets/{id} and GET /api/feed.
type TweetHandler struct {
	tweets    TweetReader
	summaries store.SummaryRepository
	logger    *slog.Logger
}

// NewTweetHandler constructs a TweetHandler.
func NewTweetHandler(tweets TweetReader, summaries store.SummaryRepository, logger *slog.Logger) *TweetHandler {
	return &TweetHandler{tweets: tweets, summaries: summaries, logger: logger}
}

// tweetListItem augments a Tweet with the has_summary/has_deduplication
// flags §6 requires on the list endpoint.
type tweetListItem struct {
	models.Tweet
	HasSummary        bool `json:"has_summary"`
	HasDeduplication  bool `json:"has_deduplication"`
}

type tweetListResponse struct {
	Tweets   []tweetListItem `json:"tweets"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// List handles GET /api/tweets?page=&page_size=&author=.
func (h *TweetHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	author := r.URL.Query().Get("author")

	tweets, total, err := h.tweets.List(r.Context(), page, pageSize, author)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]tweetListItem, len(tweets))
	for i, tw := range tweets {
		items[i] = tweetListItem{
			Tweet:            tw,
			HasSummary:       false,
			HasDeduplication: tw.DedupGroupID != nil,
		}
		if _, err := h.summaries.GetByTweetID(r.Context(), tw.TweetID); err == nil {
			items[i].HasSummary = true
		}
	}

	writeJSON(w, h.logger, http.StatusOK, tweetListResponse{Tweets: items, Total: total, Page: page, PageSize: pageSize})
}

type tweetDetailResponse struct {
	models.Tweet
	Summary   *models.Summary   `json:"summary,omitempty"`
	DedupInfo *dedupInfo        `json:"dedup_info,omitempty"`
}

type dedupInfo struct {
	GroupID string `json:"group_id"`
}

// Get handles GET /api/tweets/{tweet_id}.
func (h *TweetHandler) Get(w http.ResponseWriter, r *http.Request, tweetID string) {
	tw, err := h.tweets.GetByID(r.Context(), tweetID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := tweetDetailResponse{Tweet: *tw}
	if summary, err := h.summaries.GetByTweetID(r.Context(), tweetID); err == nil {
		resp.Summary = summary
	}
	if tw.DedupGroupID != nil {
		resp.DedupInfo = &dedupInfo{GroupID: *tw.DedupGroupID}
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

type feedResponse struct {
	Tweets []feedItem `json:"tweets"`
}

type feedItem struct {
	models.Tweet
	Summary *models.Summary `json:"summary,omitempty"`
}

// Feed handles GET /api/feed?since=&until=&limit=&include_summary=.
func (h *TweetHandler) Feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := parseOptionalTime(q.Get("since"))
	if err != nil {
		writeBadRequest(w, h.logger, "invalid since timestamp")
		return
	}
	until, err := parseOptionalTime(q.Get("until"))
	if err != nil {
		writeBadRequest(w, h.logger, "invalid until timestamp")
		return
	}
	limit := queryInt(r, "limit", 100)
	includeSummary := q.Get("include_summary") == "true"

	tweets, err := h.tweets.ListFeed(r.Context(), since, until, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]feedItem, len(tweets))
	for i, tw := range tweets {
		items[i] = feedItem{Tweet: tw}
		if includeSummary {
			if summary, err := h.summaries.GetByTweetID(r.Context(), tw.TweetID); err == nil {
				items[i].Summary = summary
			}
		}
	}

	writeJSON(w, h.logger, http.StatusOK, feedResponse{Tweets: items})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseOptionalTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
