package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/auth"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

// UserHandler serves authentication, self-service, and admin user
// management endpoints of §6.
type UserHandler struct {
	users   store.UserRepository
	apiKeys store.APIKeyRepository
	authCfg auth.Config
	logger  *slog.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users store.UserRepository, apiKeys store.APIKeyRepository, authCfg auth.Config, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, apiKeys: apiKeys, authCfg: authCfg, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, h.logger, fmt.Errorf("invalid credentials: %w", apperr.ErrAuthRequired))
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.IsAdmin, h.authCfg.JWTSecret, h.authCfg.TokenDuration)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, loginResponse{Token: token, User: *user})
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	user, err := h.users.GetByID(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, user)
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdatePassword handles PUT /api/users/me/password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}

	user, err := h.users.GetByID(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		writeError(w, h.logger, fmt.Errorf("current password incorrect: %w", apperr.ErrValidation))
		return
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.UpdatePasswordHash(r.Context(), user.ID, newHash); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createAPIKeyRequest struct {
	Label string `json:"label,omitempty"`
}

type createAPIKeyResponse struct {
	Key       string `json:"key"`
	KeyPrefix string `json:"key_prefix"`
}

// ListAPIKeys handles GET /api/users/me/api-keys.
func (h *UserHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	keys, err := h.apiKeys.ListForUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, keys)
}

// CreateAPIKey handles POST /api/users/me/api-keys. The plaintext key is
// returned exactly once; only its hash and prefix are ever persisted.
func (h *UserHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	var req createAPIKeyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, h.logger, "invalid JSON body")
			return
		}
	}

	plaintext, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	key := models.APIKey{
		ID:        uuid.New().String(),
		UserID:    p.UserID,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Label:     req.Label,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.apiKeys.Create(r.Context(), key); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, createAPIKeyResponse{Key: plaintext, KeyPrefix: prefix})
}

// DeleteAPIKey handles DELETE /api/users/me/api-keys/{id}.
func (h *UserHandler) DeleteAPIKey(w http.ResponseWriter, r *http.Request, keyID string) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.ErrAuthRequired)
		return
	}
	if err := h.apiKeys.Delete(r.Context(), p.UserID, keyID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// CreateUser handles POST /api/admin/users.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, h.logger, fmt.Errorf("email and password are required: %w", apperr.ErrValidation))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		IsAdmin:      req.IsAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, user)
}

// ListUsers handles GET /api/admin/users.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, users)
}

type resetPasswordResponse struct {
	TemporaryPassword string `json:"temporary_password"`
}

// ResetPassword handles POST /api/admin/users/{id}/reset-password, issuing
// a random temporary password the admin relays to the user out of band.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request, userID string) {
	temp := uuid.New().String()
	hash, err := auth.HashPassword(temp)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.UpdatePasswordHash(r.Context(), userID, hash); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resetPasswordResponse{TemporaryPassword: temp})
}
