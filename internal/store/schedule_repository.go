package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xfeed/xfeed/internal/models"
)

// ScheduleRepository persists the singleton Schedule Config row.
type ScheduleRepository interface {
	Get(ctx context.Context) (models.ScheduleConfig, error)
	Upsert(ctx context.Context, cfg models.ScheduleConfig) error
	ClearNextRunTime(ctx context.Context) error
}

// PostgresScheduleRepository implements ScheduleRepository.
type PostgresScheduleRepository struct {
	db *sql.DB
}

// NewPostgresScheduleRepository constructs a PostgresScheduleRepository.
func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

// Get returns the schedule config, or an unconfigured zero-value record if
// the singleton row has never been written.
func (r *PostgresScheduleRepository) Get(ctx context.Context) (models.ScheduleConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT interval_seconds, next_run_time, is_enabled, updated_at, updated_by
		FROM scraper_schedule_config WHERE id = 1
	`)

	var cfg models.ScheduleConfig
	var nextRun sql.NullTime
	err := row.Scan(&cfg.IntervalSeconds, &nextRun, &cfg.Enabled, &cfg.UpdatedAt, &cfg.UpdatedBy)
	if err == sql.ErrNoRows {
		return models.ScheduleConfig{}, nil
	}
	if err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("querying schedule config: %w", err)
	}
	if nextRun.Valid {
		cfg.NextRunTime = &nextRun.Time
	}

	return cfg, nil
}

func (r *PostgresScheduleRepository) Upsert(ctx context.Context, cfg models.ScheduleConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scraper_schedule_config (id, interval_seconds, next_run_time, is_enabled, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			interval_seconds = EXCLUDED.interval_seconds,
			next_run_time = EXCLUDED.next_run_time,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`, cfg.IntervalSeconds, cfg.NextRunTime, cfg.Enabled, cfg.UpdatedAt, cfg.UpdatedBy)
	if err != nil {
		return fmt.Errorf("upserting schedule config: %w", err)
	}
	return nil
}

func (r *PostgresScheduleRepository) ClearNextRunTime(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scraper_schedule_config SET next_run_time = NULL WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("clearing next_run_time: %w", err)
	}
	return nil
}
