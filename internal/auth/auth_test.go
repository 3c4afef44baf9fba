package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

type fakeUserRepo struct{ users map[string]models.User }

func newFakeUserRepo() *fakeUserRepo { return &fakeUserRepo{users: make(map[string]models.User)} }

func (r *fakeUserRepo) Create(ctx context.Context, u models.User) error {
	r.users[u.ID] = u
	return nil
}
func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, apperr.ErrNotFound
}
func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.ErrNotFound
}
func (r *fakeUserRepo) List(ctx context.Context) ([]models.User, error) { return nil, nil }
func (r *fakeUserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	u := r.users[id]
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

type fakeAPIKeyRepo struct{ keys map[string]models.APIKey }

func newFakeAPIKeyRepo() *fakeAPIKeyRepo { return &fakeAPIKeyRepo{keys: make(map[string]models.APIKey)} }

func (r *fakeAPIKeyRepo) Create(ctx context.Context, k models.APIKey) error {
	r.keys[k.KeyHash] = k
	return nil
}
func (r *fakeAPIKeyRepo) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	if k, ok := r.keys[hash]; ok {
		return &k, nil
	}
	return nil, apperr.ErrNotFound
}
func (r *fakeAPIKeyRepo) Touch(ctx context.Context, id string, usedAt time.Time) error { return nil }
func (r *fakeAPIKeyRepo) ListForUser(ctx context.Context, userID string) ([]models.APIKey, error) {
	return nil, nil
}
func (r *fakeAPIKeyRepo) Delete(ctx context.Context, userID, id string) error { return nil }

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword("correct horse battery staple", hash) {
		t.Error("expected matching password to check out")
	}
	if CheckPassword("wrong password", hash) {
		t.Error("expected mismatched password to fail")
	}
}

func TestHashPassword_LongInputIsPrehashed(t *testing.T) {
	long := strings.Repeat("a", 200)
	hash, err := HashPassword(long)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword(long, hash) {
		t.Error("expected a >72 byte password to still verify via SHA-256 pre-hash")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("user-1", "a@example.com", true, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ValidateToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "a@example.com" || !claims.IsAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateToken_WrongSecretFails(t *testing.T) {
	token, _ := GenerateToken("user-1", "a@example.com", false, "secret", time.Hour)
	if _, err := ValidateToken(token, "other-secret"); !apperr.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired for a bad secret, got %v", err)
	}
}

func TestValidateToken_ExpiredFails(t *testing.T) {
	token, _ := GenerateToken("user-1", "a@example.com", false, "secret", -time.Hour)
	if _, err := ValidateToken(token, "secret"); !apperr.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired for an expired token, got %v", err)
	}
}

func TestGenerateAPIKey_HashesRoundTrip(t *testing.T) {
	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if !strings.HasPrefix(plaintext, models.APIKeyTokenPrefix) {
		t.Errorf("plaintext = %q, want sna_ prefix", plaintext)
	}
	if prefix != plaintext[:8] {
		t.Errorf("prefix = %q, want first 8 chars of plaintext", prefix)
	}
	if HashAPIKey(plaintext) != hash {
		t.Error("HashAPIKey(plaintext) does not match returned hash")
	}
}

func TestAuthenticate_APIKeyPath(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = models.User{ID: "u1", Email: "bob@example.com"}
	keys := newFakeAPIKeyRepo()

	plaintext, hash, prefix, _ := GenerateAPIKey()
	keys.keys[hash] = models.APIKey{ID: "k1", UserID: "u1", KeyHash: hash, KeyPrefix: prefix}

	a := NewAuthenticator(users, keys, Config{JWTSecret: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", plaintext)

	principal, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if principal.UserID != "u1" || !principal.ViaAPIKey {
		t.Errorf("unexpected principal: %+v", principal)
	}
}

func TestAuthenticate_AdminBootstrapKey(t *testing.T) {
	a := NewAuthenticator(newFakeUserRepo(), newFakeAPIKeyRepo(), Config{JWTSecret: "secret", AdminAPIKey: "root-key"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "root-key")

	principal, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !principal.IsAdmin || principal.UserID != "0" {
		t.Errorf("expected synthetic admin principal, got %+v", principal)
	}
}

func TestAuthenticate_BearerPath(t *testing.T) {
	users := newFakeUserRepo()
	a := NewAuthenticator(users, newFakeAPIKeyRepo(), Config{JWTSecret: "secret"})

	token, _ := GenerateToken("u2", "carol@example.com", false, "secret", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	principal, err := a.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if principal.UserID != "u2" || principal.ViaAPIKey {
		t.Errorf("unexpected principal: %+v", principal)
	}
}

func TestAuthenticate_NoCredentialsIsAuthRequired(t *testing.T) {
	a := NewAuthenticator(newFakeUserRepo(), newFakeAPIKeyRepo(), Config{JWTSecret: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := a.Authenticate(context.Background(), req)
	if !apperr.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
}

func TestMiddleware_RequireAdminRejectsNonAdmin(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = models.User{ID: "u1", Email: "bob@example.com", IsAdmin: false}
	keys := newFakeAPIKeyRepo()
	plaintext, hash, prefix, _ := GenerateAPIKey()
	keys.keys[hash] = models.APIKey{ID: "k1", UserID: "u1", KeyHash: hash, KeyPrefix: prefix}

	a := NewAuthenticator(users, keys, Config{JWTSecret: "secret"})

	called := false
	handler := a.Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("expected handler not to be called for a non-admin on an admin-only route")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestMiddleware_AttachesPrincipal(t *testing.T) {
	users := newFakeUserRepo()
	a := NewAuthenticator(users, newFakeAPIKeyRepo(), Config{JWTSecret: "secret"})
	token, _ := GenerateToken("u3", "dan@example.com", false, "secret", time.Hour)

	var gotPrincipal Principal
	handler := a.Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotPrincipal.UserID != "u3" {
		t.Errorf("principal.UserID = %q, want u3", gotPrincipal.UserID)
	}
}
