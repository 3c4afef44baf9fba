package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

// SummaryRepository persists per-tweet Summary Records.
type SummaryRepository interface {
	Upsert(ctx context.Context, s models.Summary) error
	GetByTweetID(ctx context.Context, tweetID string) (*models.Summary, error)
	Stats(ctx context.Context, start, end time.Time) (map[string]ProviderStats, error)
}

// ProviderStats aggregates token/cost usage for one LLM provider over a
// date range.
type ProviderStats struct {
	Count            int     `json:"count"`
	TotalTokens      int     `json:"total_tokens"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
}

// PostgresSummaryRepository implements SummaryRepository using PostgreSQL.
type PostgresSummaryRepository struct {
	db *sql.DB
}

// NewPostgresSummaryRepository constructs a PostgresSummaryRepository.
func NewPostgresSummaryRepository(db *sql.DB) *PostgresSummaryRepository {
	return &PostgresSummaryRepository{db: db}
}

// Upsert writes a Summary Record, replacing any prior record for the same
// tweet (used by regenerate / force_refresh).
func (r *PostgresSummaryRepository) Upsert(ctx context.Context, s models.Summary) error {
	query := `
		INSERT INTO summaries (
			summary_id, tweet_id, summary_text, translation_text, model_provider, model_name,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, cached,
			is_generated_summary, content_hash, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (tweet_id) DO UPDATE SET
			summary_text = EXCLUDED.summary_text,
			translation_text = EXCLUDED.translation_text,
			model_provider = EXCLUDED.model_provider,
			model_name = EXCLUDED.model_name,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			total_tokens = EXCLUDED.total_tokens,
			cost_usd = EXCLUDED.cost_usd,
			cached = EXCLUDED.cached,
			is_generated_summary = EXCLUDED.is_generated_summary,
			content_hash = EXCLUDED.content_hash,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		s.SummaryID, s.TweetID, s.SummaryText, s.TranslationText, s.ModelProvider, s.ModelName,
		s.PromptTokens, s.CompletionTokens, s.TotalTokens, s.CostUSD, s.Cached,
		s.IsGeneratedSummary, s.ContentHash, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting summary for tweet %s: %w", s.TweetID, err)
	}
	return nil
}

func (r *PostgresSummaryRepository) GetByTweetID(ctx context.Context, tweetID string) (*models.Summary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT summary_id, tweet_id, summary_text, translation_text, model_provider, model_name,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, cached,
			is_generated_summary, content_hash, created_at, updated_at
		FROM summaries WHERE tweet_id = $1
	`, tweetID)

	var s models.Summary
	var translation sql.NullString
	err := row.Scan(
		&s.SummaryID, &s.TweetID, &s.SummaryText, &translation, &s.ModelProvider, &s.ModelName,
		&s.PromptTokens, &s.CompletionTokens, &s.TotalTokens, &s.CostUSD, &s.Cached,
		&s.IsGeneratedSummary, &s.ContentHash, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("summary for tweet %s: %w", tweetID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning summary: %w", err)
	}
	if translation.Valid {
		s.TranslationText = &translation.String
	}

	return &s, nil
}

func (r *PostgresSummaryRepository) Stats(ctx context.Context, start, end time.Time) (map[string]ProviderStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT model_provider, COUNT(*), COALESCE(SUM(total_tokens),0), COALESCE(SUM(cost_usd),0)
		FROM summaries
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY model_provider
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying summary stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]ProviderStats)
	for rows.Next() {
		var provider string
		var s ProviderStats
		if err := rows.Scan(&provider, &s.Count, &s.TotalTokens, &s.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("scanning summary stats row: %w", err)
		}
		stats[provider] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return stats, nil
}
