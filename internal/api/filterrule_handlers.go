package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/auth"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

// FilterRuleHandler serves the self-service content filter endpoints of §3.
type FilterRuleHandler struct {
	rules  store.FilterRuleRepository
	logger *slog.Logger
}

// NewFilterRuleHandler constructs a FilterRuleHandler.
func NewFilterRuleHandler(rules store.FilterRuleRepository, logger *slog.Logger) *FilterRuleHandler {
	return &FilterRuleHandler{rules: rules, logger: logger}
}

// List handles GET /api/users/me/filters.
func (h *FilterRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	rules, err := h.rules.ListForUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rules)
}

type createFilterRuleRequest struct {
	Type  models.FilterRuleType `json:"filter_type"`
	Value string                `json:"value"`
}

// Create handles POST /api/users/me/filters.
func (h *FilterRuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	var req createFilterRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	if req.Value == "" {
		writeBadRequest(w, h.logger, "value is required")
		return
	}
	switch req.Type {
	case models.FilterKeyword, models.FilterHashtag, models.FilterContentType:
	default:
		writeError(w, h.logger, fmt.Errorf("unknown filter_type %q: %w", req.Type, apperr.ErrValidation))
		return
	}

	rule := models.FilterRule{
		ID:     uuid.New().String(),
		UserID: p.UserID,
		Type:   req.Type,
		Value:  req.Value,
	}
	if err := h.rules.Create(r.Context(), rule); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, rule)
}

// Delete handles DELETE /api/users/me/filters/{id}.
func (h *FilterRuleHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	if err := h.rules.Delete(r.Context(), p.UserID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
