package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/xfeed/xfeed/internal/scheduler"
)

// HealthHandler serves GET /health, a composite status of the components
// the monitoring agent depends on. It always returns 200: callers are
// expected to inspect the body, not the status code, per §6.
type HealthHandler struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *sql.DB, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

type healthResponse struct {
	Status     string                  `json:"status"`
	Components map[string]healthDetail `json:"components"`
}

type healthDetail struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Get handles GET /health.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Components: map[string]healthDetail{}}

	if err := h.db.PingContext(r.Context()); err != nil {
		resp.Components["database"] = healthDetail{Status: "down", Detail: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Components["database"] = healthDetail{Status: "ok"}
	}

	if s := scheduler.Current(); s != nil {
		resp.Components["scheduler"] = healthDetail{Status: string(s.CurrentState())}
	} else {
		resp.Components["scheduler"] = healthDetail{Status: string(scheduler.StateUnconfigured)}
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
