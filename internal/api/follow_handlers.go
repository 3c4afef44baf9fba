package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/xfeed/xfeed/internal/auth"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

// FollowHandler serves the admin scraping follow-list endpoints of §6.
type FollowHandler struct {
	follows store.FollowRepository
	logger  *slog.Logger
}

// NewFollowHandler constructs a FollowHandler.
func NewFollowHandler(follows store.FollowRepository, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{follows: follows, logger: logger}
}

// List handles GET /api/admin/scraping/follows.
func (h *FollowHandler) List(w http.ResponseWriter, r *http.Request) {
	follows, err := h.follows.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, follows)
}

type addFollowRequest struct {
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

// Add handles POST /api/admin/scraping/follows.
func (h *FollowHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addFollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	if req.Username == "" {
		writeBadRequest(w, h.logger, "username is required")
		return
	}

	addedBy := "admin"
	if p, ok := auth.FromContext(r.Context()); ok {
		addedBy = p.UserID
	}

	f := models.ScraperFollow{
		Username: req.Username,
		Reason:   req.Reason,
		AddedBy:  addedBy,
		AddedAt:  time.Now().UTC(),
		IsActive: true,
	}
	if err := h.follows.Add(r.Context(), f); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, f)
}

type updateFollowRequest struct {
	IsActive bool `json:"is_active"`
}

// Update handles PUT /api/admin/scraping/follows/{username}.
func (h *FollowHandler) Update(w http.ResponseWriter, r *http.Request, username string) {
	var req updateFollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	if err := h.follows.SetActive(r.Context(), username, req.IsActive); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /api/admin/scraping/follows/{username}.
func (h *FollowHandler) Remove(w http.ResponseWriter, r *http.Request, username string) {
	if err := h.follows.Remove(r.Context(), username); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
