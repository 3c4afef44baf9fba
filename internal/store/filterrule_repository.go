package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

// FilterRuleRepository manages per-user content filters.
type FilterRuleRepository interface {
	ListForUser(ctx context.Context, userID string) ([]models.FilterRule, error)
	Create(ctx context.Context, f models.FilterRule) error
	Delete(ctx context.Context, userID, id string) error
}

// PostgresFilterRuleRepository implements FilterRuleRepository.
type PostgresFilterRuleRepository struct {
	db *sql.DB
}

// NewPostgresFilterRuleRepository constructs a PostgresFilterRuleRepository.
func NewPostgresFilterRuleRepository(db *sql.DB) *PostgresFilterRuleRepository {
	return &PostgresFilterRuleRepository{db: db}
}

func (r *PostgresFilterRuleRepository) ListForUser(ctx context.Context, userID string) ([]models.FilterRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, filter_type, value FROM filter_rules WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing filter rules for user %s: %w", userID, err)
	}
	defer rows.Close()

	var rules []models.FilterRule
	for rows.Next() {
		var f models.FilterRule
		if err := rows.Scan(&f.ID, &f.UserID, &f.Type, &f.Value); err != nil {
			return nil, fmt.Errorf("scanning filter rule: %w", err)
		}
		rules = append(rules, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return rules, nil
}

// Create inserts a filter rule, rejecting duplicates of (user_id,
// filter_type, value) and callers already at MaxFilterRulesPerUser.
func (r *PostgresFilterRuleRepository) Create(ctx context.Context, f models.FilterRule) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM filter_rules WHERE user_id = $1`, f.UserID).Scan(&count); err != nil {
		return fmt.Errorf("counting filter rules for user %s: %w", f.UserID, err)
	}
	if count >= models.MaxFilterRulesPerUser {
		return fmt.Errorf("user %s already has %d filter rules: %w", f.UserID, models.MaxFilterRulesPerUser, apperr.ErrValidation)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO filter_rules (id, user_id, filter_type, value)
		VALUES ($1,$2,$3,$4)
	`, f.ID, f.UserID, f.Type, f.Value)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("filter rule %s/%s already exists for user %s: %w", f.Type, f.Value, f.UserID, apperr.ErrConflict)
		}
		return fmt.Errorf("creating filter rule for user %s: %w", f.UserID, err)
	}
	return nil
}

func (r *PostgresFilterRuleRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM filter_rules WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting filter rule %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("filter rule %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
