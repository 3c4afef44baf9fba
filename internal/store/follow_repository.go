package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

// FollowRepository manages the platform-level follow list and per-user
// follow subsets.
type FollowRepository interface {
	ListActive(ctx context.Context) ([]models.ScraperFollow, error)
	List(ctx context.Context) ([]models.ScraperFollow, error)
	Add(ctx context.Context, f models.ScraperFollow) error
	SetActive(ctx context.Context, username string, active bool) error
	Remove(ctx context.Context, username string) error
}

// PostgresFollowRepository implements FollowRepository using PostgreSQL.
type PostgresFollowRepository struct {
	db *sql.DB
}

// NewPostgresFollowRepository constructs a PostgresFollowRepository.
func NewPostgresFollowRepository(db *sql.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) ListActive(ctx context.Context) ([]models.ScraperFollow, error) {
	return r.list(ctx, true)
}

func (r *PostgresFollowRepository) List(ctx context.Context) ([]models.ScraperFollow, error) {
	return r.list(ctx, false)
}

func (r *PostgresFollowRepository) list(ctx context.Context, activeOnly bool) ([]models.ScraperFollow, error) {
	query := `SELECT username, reason, added_by, added_at, is_active FROM scraper_follows`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing scraper follows: %w", err)
	}
	defer rows.Close()

	var follows []models.ScraperFollow
	for rows.Next() {
		var f models.ScraperFollow
		if err := rows.Scan(&f.Username, &f.Reason, &f.AddedBy, &f.AddedAt, &f.IsActive); err != nil {
			return nil, fmt.Errorf("scanning scraper follow: %w", err)
		}
		follows = append(follows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return follows, nil
}

func (r *PostgresFollowRepository) Add(ctx context.Context, f models.ScraperFollow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scraper_follows (username, reason, added_by, added_at, is_active)
		VALUES ($1,$2,$3,$4,TRUE)
		ON CONFLICT (username) DO UPDATE SET is_active = TRUE, reason = EXCLUDED.reason
	`, f.Username, f.Reason, f.AddedBy, f.AddedAt)
	if err != nil {
		return fmt.Errorf("adding scraper follow %s: %w", f.Username, err)
	}
	return nil
}

func (r *PostgresFollowRepository) SetActive(ctx context.Context, username string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE scraper_follows SET is_active = $1 WHERE username = $2`, active, username)
	if err != nil {
		return fmt.Errorf("updating scraper follow %s: %w", username, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("scraper follow %s: %w", username, apperr.ErrNotFound)
	}
	return nil
}

// Remove soft-deletes a follow; historical tweets keep a stable author
// reference.
func (r *PostgresFollowRepository) Remove(ctx context.Context, username string) error {
	return r.SetActive(ctx, username, false)
}

// UserFollowRepository manages per-user follow subsets.
type UserFollowRepository interface {
	ListForUser(ctx context.Context, userID string) ([]models.UserFollow, error)
	Set(ctx context.Context, f models.UserFollow) error
	Remove(ctx context.Context, userID, username string) error
}

// PostgresUserFollowRepository implements UserFollowRepository.
type PostgresUserFollowRepository struct {
	db *sql.DB
}

// NewPostgresUserFollowRepository constructs a PostgresUserFollowRepository.
func NewPostgresUserFollowRepository(db *sql.DB) *PostgresUserFollowRepository {
	return &PostgresUserFollowRepository{db: db}
}

func (r *PostgresUserFollowRepository) ListForUser(ctx context.Context, userID string) ([]models.UserFollow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, username, priority FROM twitter_follows WHERE user_id = $1 ORDER BY priority DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user follows: %w", err)
	}
	defer rows.Close()

	var follows []models.UserFollow
	for rows.Next() {
		var f models.UserFollow
		if err := rows.Scan(&f.UserID, &f.Username, &f.Priority); err != nil {
			return nil, fmt.Errorf("scanning user follow: %w", err)
		}
		follows = append(follows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return follows, nil
}

func (r *PostgresUserFollowRepository) Set(ctx context.Context, f models.UserFollow) error {
	f.NormalizePriority()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO twitter_follows (user_id, username, priority)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id, username) DO UPDATE SET priority = EXCLUDED.priority
	`, f.UserID, f.Username, f.Priority)
	if err != nil {
		return fmt.Errorf("setting user follow %s/%s: %w", f.UserID, f.Username, err)
	}
	return nil
}

func (r *PostgresUserFollowRepository) Remove(ctx context.Context, userID, username string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM twitter_follows WHERE user_id = $1 AND username = $2`, userID, username)
	if err != nil {
		return fmt.Errorf("removing user follow %s/%s: %w", userID, username, err)
	}
	return nil
}
