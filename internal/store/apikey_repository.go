package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

// APIKeyRepository persists programmatic credentials for agent clients.
type APIKeyRepository interface {
	Create(ctx context.Context, k models.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	Touch(ctx context.Context, id string, usedAt time.Time) error
	ListForUser(ctx context.Context, userID string) ([]models.APIKey, error)
	Delete(ctx context.Context, userID, id string) error
}

// PostgresAPIKeyRepository implements APIKeyRepository using PostgreSQL.
type PostgresAPIKeyRepository struct {
	db *sql.DB
}

// NewPostgresAPIKeyRepository constructs a PostgresAPIKeyRepository.
func NewPostgresAPIKeyRepository(db *sql.DB) *PostgresAPIKeyRepository {
	return &PostgresAPIKeyRepository{db: db}
}

func (r *PostgresAPIKeyRepository) Create(ctx context.Context, k models.APIKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, label, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, k.ID, k.UserID, k.KeyHash, k.KeyPrefix, k.Label, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating api key for user %s: %w", k.UserID, err)
	}
	return nil
}

// GetByHash looks up a key by its SHA-256 hash, the only form ever
// persisted. Callers hash the presented token before calling this.
func (r *PostgresAPIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, key_hash, key_prefix, label, created_at, last_used_at
		FROM api_keys WHERE key_hash = $1
	`, keyHash)

	var k models.APIKey
	var label sql.NullString
	var lastUsedAt sql.NullTime
	err := row.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.KeyPrefix, &label, &k.CreatedAt, &lastUsedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("api key: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning api key: %w", err)
	}
	if label.Valid {
		k.Label = label.String
	}
	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Time
	}

	return &k, nil
}

// Touch records the most recent successful authentication against a key.
func (r *PostgresAPIKeyRepository) Touch(ctx context.Context, id string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, usedAt, id)
	if err != nil {
		return fmt.Errorf("touching api key %s: %w", id, err)
	}
	return nil
}

func (r *PostgresAPIKeyRepository) ListForUser(ctx context.Context, userID string) ([]models.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, key_hash, key_prefix, label, created_at, last_used_at
		FROM api_keys WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys for user %s: %w", userID, err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var k models.APIKey
		var label sql.NullString
		var lastUsedAt sql.NullTime
		if err := rows.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.KeyPrefix, &label, &k.CreatedAt, &lastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning api key: %w", err)
		}
		if label.Valid {
			k.Label = label.String
		}
		if lastUsedAt.Valid {
			k.LastUsedAt = &lastUsedAt.Time
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return keys, nil
}

// Delete removes a key, scoped to its owning user so one user cannot
// revoke another's credentials.
func (r *PostgresAPIKeyRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting api key %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("api key %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
