package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xfeed/xfeed/internal/apperr"
)

// errorEnvelope is the {"detail": string} shape every failing endpoint
// returns, per §6.
type errorEnvelope struct {
	Detail string `json:"detail"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response failed", "error", err)
	}
}

// writeError maps an apperr sentinel to its HTTP status and writes the
// error envelope, per §7's error taxonomy and §6's status code table.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, logger, status, errorEnvelope{Detail: err.Error()})
}

func statusFor(err error) int {
	switch {
	case apperr.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	case apperr.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case apperr.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case apperr.Is(err, apperr.ErrAuthRequired):
		return http.StatusUnauthorized
	case apperr.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case apperr.Is(err, apperr.ErrAllProvidersFailed),
		apperr.Is(err, apperr.ErrTransientUpstream),
		apperr.Is(err, apperr.ErrPermanentUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errBadRequest is a lightweight malformed-input error distinct from
// apperr.ErrValidation (semantic validation, §7): JSON decode failures and
// missing required query/body fields map straight to 400 rather than going
// through the apperr taxonomy.
var errBadRequest = errors.New("malformed request")

func writeBadRequest(w http.ResponseWriter, logger *slog.Logger, msg string) {
	logger.Debug("bad request", "error", errBadRequest, "detail", msg)
	writeJSON(w, logger, http.StatusBadRequest, errorEnvelope{Detail: msg})
}
