package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/dedup"
	"github.com/xfeed/xfeed/internal/store"
)

// DedupEngine is satisfied by *dedup.Engine.
type DedupEngine interface {
	Deduplicate(ctx context.Context, tweetIDs []string, forceRefresh bool) (dedup.Stats, error)
}

// DedupHandler serves the /api/deduplicate endpoints of §6.
type DedupHandler struct {
	engine DedupEngine
	groups store.DedupRepository
	tasks  TaskRegistry
	logger *slog.Logger
}

// NewDedupHandler constructs a DedupHandler.
func NewDedupHandler(engine DedupEngine, groups store.DedupRepository, tasks TaskRegistry, logger *slog.Logger) *DedupHandler {
	return &DedupHandler{engine: engine, groups: groups, tasks: tasks, logger: logger}
}

type dedupBatchRequest struct {
	TweetIDs     []string `json:"tweet_ids"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

type dedupBatchResponse struct {
	TaskID string `json:"task_id"`
}

// Batch handles POST /api/deduplicate/batch.
func (h *DedupHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req dedupBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	if len(req.TweetIDs) == 0 {
		writeError(w, h.logger, fmt.Errorf("tweet_ids must be non-empty: %w", apperr.ErrValidation))
		return
	}

	taskID := h.tasks.Create("deduplicate")
	h.tasks.Go(taskID, func(ctx context.Context) (interface{}, error) {
		stats, err := h.engine.Deduplicate(ctx, req.TweetIDs, req.ForceRefresh)
		if err != nil {
			return nil, err
		}
		return stats, nil
	})

	writeJSON(w, h.logger, http.StatusAccepted, dedupBatchResponse{TaskID: taskID})
}

// GetGroup handles GET /api/deduplicate/groups/{group_id}.
func (h *DedupHandler) GetGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	group, err := h.groups.GetGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, group)
}

// DeleteGroup handles DELETE /api/deduplicate/groups/{group_id}, undoing a
// grouping decision.
func (h *DedupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	if err := h.groups.DeleteGroup(r.Context(), groupID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
