package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xfeed/xfeed/internal/models"
)

// FetchStatsRepository persists the per-username running counters the
// Limit Calculator reads to adapt the next fetch size.
type FetchStatsRepository interface {
	Get(ctx context.Context, username string) (models.FetchStats, error)
	Upsert(ctx context.Context, stats models.FetchStats) error
}

// PostgresFetchStatsRepository implements FetchStatsRepository.
type PostgresFetchStatsRepository struct {
	db *sql.DB
}

// NewPostgresFetchStatsRepository constructs a PostgresFetchStatsRepository.
func NewPostgresFetchStatsRepository(db *sql.DB) *PostgresFetchStatsRepository {
	return &PostgresFetchStatsRepository{db: db}
}

// Get returns the stats for username, or a zero-value record (TotalFetches
// == 0) when no row exists yet — this is what lets the Limit Calculator
// treat "no prior record" as a distinct case without a NotFound error.
func (r *PostgresFetchStatsRepository) Get(ctx context.Context, username string) (models.FetchStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, last_fetch_at, last_fetched_count, last_new_count, total_fetches, avg_new_rate, consecutive_empty_fetches
		FROM scraper_fetch_stats WHERE username = $1
	`, username)

	var stats models.FetchStats
	var lastFetchAt sql.NullTime
	err := row.Scan(&stats.Username, &lastFetchAt, &stats.LastFetchedCount, &stats.LastNewCount, &stats.TotalFetches, &stats.AvgNewRate, &stats.ConsecutiveEmptyFetches)
	if err == sql.ErrNoRows {
		return models.FetchStats{Username: username}, nil
	}
	if err != nil {
		return models.FetchStats{}, fmt.Errorf("querying fetch stats for %s: %w", username, err)
	}
	if lastFetchAt.Valid {
		stats.LastFetchAt = lastFetchAt.Time
	}

	return stats, nil
}

func (r *PostgresFetchStatsRepository) Upsert(ctx context.Context, stats models.FetchStats) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scraper_fetch_stats (username, last_fetch_at, last_fetched_count, last_new_count, total_fetches, avg_new_rate, consecutive_empty_fetches)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (username) DO UPDATE SET
			last_fetch_at = EXCLUDED.last_fetch_at,
			last_fetched_count = EXCLUDED.last_fetched_count,
			last_new_count = EXCLUDED.last_new_count,
			total_fetches = EXCLUDED.total_fetches,
			avg_new_rate = EXCLUDED.avg_new_rate,
			consecutive_empty_fetches = EXCLUDED.consecutive_empty_fetches
	`, stats.Username, stats.LastFetchAt, stats.LastFetchedCount, stats.LastNewCount, stats.TotalFetches, stats.AvgNewRate, stats.ConsecutiveEmptyFetches)
	if err != nil {
		return fmt.Errorf("upserting fetch stats for %s: %w", stats.Username, err)
	}
	return nil
}
