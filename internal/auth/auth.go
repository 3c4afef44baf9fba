// Package auth implements the two credential paths of §6: an HS256 JWT for
// human users (Authorization: Bearer) and a SHA-256-hashed API key for
// programmatic/agent clients (X-API-Key), plus the ADMIN_API_KEY bootstrap
// fallback for admin endpoints.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

type contextKey string

const principalContextKey contextKey = "principal"

// bcryptInputLimit is bcrypt's hard 72-byte password limit; passwords
// longer than this are SHA-256 pre-hashed before bcrypt ever sees them, so
// length beyond 72 bytes is never silently truncated.
const bcryptInputLimit = 72

// Config holds authentication configuration, loaded from the environment
// variables in §6 ("Configuration").
type Config struct {
	JWTSecret     string
	AdminAPIKey   string
	TokenDuration time.Duration
}

// LoadConfigFromEnv loads auth config from JWT_SECRET_KEY, JWT_EXPIRE_HOURS,
// and ADMIN_API_KEY.
func LoadConfigFromEnv() Config {
	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		secret = "change-this-secret"
	}

	hours := 24
	if v := os.Getenv("JWT_EXPIRE_HOURS"); v != "" {
		fmt.Sscanf(v, "%d", &hours)
	}

	return Config{
		JWTSecret:     secret,
		AdminAPIKey:   os.Getenv("ADMIN_API_KEY"),
		TokenDuration: time.Duration(hours) * time.Hour,
	}
}

// Claims is the JWT payload carried by Authorization: Bearer tokens, per
// §6: {sub: user_id, email, is_admin, exp, iat}.
type Claims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to the request context by
// Middleware, regardless of which credential path was used.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
	// ViaAPIKey is true when authentication used X-API-Key rather than a
	// JWT bearer token.
	ViaAPIKey bool
}

// GenerateToken issues a JWT for userID/email, signed HS256.
func GenerateToken(userID, email string, isAdmin bool, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:   email,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and verifies a JWT, enforcing HS256 as the only
// accepted algorithm.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrAuthRequired, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", apperr.ErrAuthRequired)
	}
	return claims, nil
}

// HashPassword bcrypt-hashes a password, SHA-256 pre-hashing any input over
// bcrypt's 72-byte limit so long passwords are never silently truncated.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(prehash(password)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword compares a plaintext password against its bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(prehash(password))) == nil
}

func prehash(password string) string {
	if len(password) <= bcryptInputLimit {
		return password
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey returns a new plaintext token (sna_ + 32 hex chars), its
// SHA-256 hash for storage, and its 8-char display prefix.
func GenerateAPIKey() (plaintext, hash, prefix string, err error) {
	raw := make([]byte, 16)
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generating api key: %w", err)
	}
	plaintext = models.APIKeyTokenPrefix + hex.EncodeToString(raw)
	hash = HashAPIKey(plaintext)
	prefix = plaintext[:8]
	return plaintext, hash, prefix, nil
}

// HashAPIKey returns the SHA-256 hex digest of a presented token, the only
// form ever persisted or compared against.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Authenticator resolves the two credential paths of §6 against the store.
type Authenticator struct {
	users   store.UserRepository
	apiKeys store.APIKeyRepository
	cfg     Config
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(users store.UserRepository, apiKeys store.APIKeyRepository, cfg Config) *Authenticator {
	return &Authenticator{users: users, apiKeys: apiKeys, cfg: cfg}
}

// Authenticate resolves a request's credentials into a Principal, trying
// X-API-Key first (including the ADMIN_API_KEY bootstrap), then
// Authorization: Bearer.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (Principal, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return a.authenticateAPIKey(ctx, key)
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		return a.authenticateBearer(authHeader)
	}

	return Principal{}, fmt.Errorf("no credentials presented: %w", apperr.ErrAuthRequired)
}

func (a *Authenticator) authenticateAPIKey(ctx context.Context, key string) (Principal, error) {
	if a.cfg.AdminAPIKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.cfg.AdminAPIKey)) == 1 {
		return Principal{UserID: "0", IsAdmin: true, ViaAPIKey: true}, nil
	}

	hash := HashAPIKey(key)
	rec, err := a.apiKeys.GetByHash(ctx, hash)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid api key: %w", apperr.ErrAuthRequired)
	}

	user, err := a.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("api key user: %w", apperr.ErrAuthRequired)
	}

	if err := a.apiKeys.Touch(ctx, rec.ID, time.Now().UTC()); err != nil {
		// A failed last_used_at update must not block authentication.
		_ = err
	}

	return Principal{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin, ViaAPIKey: true}, nil
}

func (a *Authenticator) authenticateBearer(authHeader string) (Principal, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Principal{}, fmt.Errorf("malformed authorization header: %w", apperr.ErrAuthRequired)
	}

	claims, err := ValidateToken(parts[1], a.cfg.JWTSecret)
	if err != nil {
		return Principal{}, err
	}

	return Principal{UserID: claims.Subject, Email: claims.Email, IsAdmin: claims.IsAdmin}, nil
}

// Middleware authenticates every request and attaches the resulting
// Principal to the request context. requireAdmin additionally rejects
// non-admin principals with ErrForbidden.
func (a *Authenticator) Middleware(requireAdmin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := a.Authenticate(r.Context(), r)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			if requireAdmin && !principal.IsAdmin {
				writeAuthError(w, fmt.Errorf("admin required: %w", apperr.ErrForbidden))
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	if apperr.Is(err, apperr.ErrForbidden) {
		status = http.StatusForbidden
	}
	http.Error(w, fmt.Sprintf(`{"detail": %q}`, err.Error()), status)
}

// FromContext extracts the authenticated Principal set by Middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// NewContextWithPrincipal attaches a Principal to ctx the same way
// Middleware does, for handler tests that bypass the HTTP auth layer.
func NewContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
