package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/coordinate"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/tasks"
)

// TaskRegistry is the subset of *tasks.Registry the scrape handlers need.
type TaskRegistry interface {
	Create(taskType string) string
	Go(taskID string, fn func(ctx context.Context) (interface{}, error))
	Get(taskID string) (models.Task, error)
	List(filter tasks.Filter) []models.Task
	Delete(taskID string) error
}

// Coordinator is satisfied by *coordinate.Coordinator.
type Coordinator interface {
	ScrapeUsers(ctx context.Context, usernames []string, overrideLimit ...int) (coordinate.ScrapeResult, error)
}

// ScrapeHandler serves the admin scrape job endpoints of §6.
type ScrapeHandler struct {
	tasks       TaskRegistry
	coordinator Coordinator
	logger      *slog.Logger
}

// NewScrapeHandler constructs a ScrapeHandler.
func NewScrapeHandler(tasks TaskRegistry, coordinator Coordinator, logger *slog.Logger) *ScrapeHandler {
	return &ScrapeHandler{tasks: tasks, coordinator: coordinator, logger: logger}
}

type enqueueScrapeRequest struct {
	Usernames string `json:"usernames"`
	Limit     *int   `json:"limit,omitempty"`
}

type enqueueScrapeResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Create handles POST /api/admin/scrape.
func (h *ScrapeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req enqueueScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}

	usernames := splitCSV(req.Usernames)
	if len(usernames) == 0 {
		writeError(w, h.logger, fmt.Errorf("usernames must be non-empty: %w", apperr.ErrValidation))
		return
	}

	taskID := h.tasks.Create("scrape")
	h.tasks.Go(taskID, func(ctx context.Context) (interface{}, error) {
		var result coordinate.ScrapeResult
		var err error
		if req.Limit != nil {
			result, err = h.coordinator.ScrapeUsers(ctx, usernames, *req.Limit)
		} else {
			result, err = h.coordinator.ScrapeUsers(ctx, usernames)
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	writeJSON(w, h.logger, http.StatusAccepted, enqueueScrapeResponse{TaskID: taskID, Status: string(models.TaskPending)})
}

// Get handles GET /api/admin/scrape/{task_id}.
func (h *ScrapeHandler) Get(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := h.tasks.Get(taskID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, task)
}

// List handles GET /api/admin/scrape.
func (h *ScrapeHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := tasks.Filter{TaskType: "scrape"}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = models.TaskStatus(status)
	}
	writeJSON(w, h.logger, http.StatusOK, h.tasks.List(filter))
}

// Delete handles DELETE /api/admin/scrape/{task_id}.
func (h *ScrapeHandler) Delete(w http.ResponseWriter, r *http.Request, taskID string) {
	if err := h.tasks.Delete(taskID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
