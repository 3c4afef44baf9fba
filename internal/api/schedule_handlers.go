package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/auth"
	"github.com/xfeed/xfeed/internal/scheduler"
)

// SchedulerControl is the subset of *scheduler.Scheduler the admin schedule
// endpoints operate against.
type SchedulerControl interface {
	Snapshot() scheduler.Snapshot
	Enable(ctx context.Context, interval int, updatedBy string) error
	Disable(ctx context.Context, updatedBy string) error
	UpdateInterval(ctx context.Context, seconds int, updatedBy string) error
	SetNextRunTime(ctx context.Context, ts time.Time, updatedBy string) error
}

// ScheduleHandler serves the admin scraper_job control endpoints of §6/§4.7.
type ScheduleHandler struct {
	logger *slog.Logger
}

// NewScheduleHandler constructs a ScheduleHandler. The live scheduler is
// resolved per-request via scheduler.Current, the process-wide handle
// published by scheduler.Register, so the handler holds no scheduler itself.
func NewScheduleHandler(logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{logger: logger}
}

func (h *ScheduleHandler) current() (SchedulerControl, error) {
	s := scheduler.Current()
	if s == nil {
		return nil, apperr.ErrInternal
	}
	return s, nil
}

// Get handles GET /api/admin/scraping/schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

type enableRequest struct {
	IntervalSeconds int `json:"interval_seconds,omitempty"`
}

// Enable handles POST /api/admin/scraping/schedule/enable.
func (h *ScheduleHandler) Enable(w http.ResponseWriter, r *http.Request) {
	var req enableRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, h.logger, "invalid JSON body")
			return
		}
	}
	s, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := s.Enable(r.Context(), req.IntervalSeconds, updatedByOf(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

// Disable handles POST /api/admin/scraping/schedule/disable.
func (h *ScheduleHandler) Disable(w http.ResponseWriter, r *http.Request) {
	s, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := s.Disable(r.Context(), updatedByOf(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

type updateIntervalRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// UpdateInterval handles PUT /api/admin/scraping/schedule/interval.
func (h *ScheduleHandler) UpdateInterval(w http.ResponseWriter, r *http.Request) {
	var req updateIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	s, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := s.UpdateInterval(r.Context(), req.IntervalSeconds, updatedByOf(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

type updateNextRunRequest struct {
	NextRunTime time.Time `json:"next_run_time"`
}

// UpdateNextRun handles PUT /api/admin/scraping/schedule/next-run.
func (h *ScheduleHandler) UpdateNextRun(w http.ResponseWriter, r *http.Request) {
	var req updateNextRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	s, err := h.current()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := s.SetNextRunTime(r.Context(), req.NextRunTime, updatedByOf(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

func updatedByOf(r *http.Request) string {
	if p, ok := auth.FromContext(r.Context()); ok {
		return p.UserID
	}
	return "admin"
}
