package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

// DedupRepository persists Dedup Groups and maintains each member tweet's
// dedup_group_id back-reference.
type DedupRepository interface {
	// SaveGroups persists groups and updates every member's back-reference
	// in a single transaction.
	SaveGroups(ctx context.Context, groups []models.DedupGroup) error
	GetGroup(ctx context.Context, groupID string) (*models.DedupGroup, error)
	// DeleteGroup removes a group and nulls its members' back-references.
	DeleteGroup(ctx context.Context, groupID string) error
	// GroupsForTweets returns the groups that any of tweetIDs already belong
	// to, used to implement force_refresh re-grouping.
	GroupsForTweets(ctx context.Context, tweetIDs []string) ([]models.DedupGroup, error)
}

// PostgresDedupRepository implements DedupRepository using PostgreSQL.
type PostgresDedupRepository struct {
	db *sql.DB
}

// NewPostgresDedupRepository constructs a PostgresDedupRepository.
func NewPostgresDedupRepository(db *sql.DB) *PostgresDedupRepository {
	return &PostgresDedupRepository{db: db}
}

func (r *PostgresDedupRepository) SaveGroups(ctx context.Context, groups []models.DedupGroup) error {
	if len(groups) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, g := range groups {
		tweetIDsJSON, err := json.Marshal(g.TweetIDs)
		if err != nil {
			return fmt.Errorf("marshalling tweet_ids: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO dedup_groups (group_id, representative_tweet_id, dedup_type, similarity_score, tweet_ids, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, g.GroupID, g.RepresentativeTweetID, g.DedupType, g.SimilarityScore, tweetIDsJSON, g.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting dedup group %s: %w", g.GroupID, err)
		}

		for _, tweetID := range g.TweetIDs {
			_, err := tx.ExecContext(ctx, `UPDATE tweets SET dedup_group_id = $1 WHERE tweet_id = $2`, g.GroupID, tweetID)
			if err != nil {
				return fmt.Errorf("setting dedup_group_id for %s: %w", tweetID, err)
			}
		}
	}

	return tx.Commit()
}

func (r *PostgresDedupRepository) GetGroup(ctx context.Context, groupID string) (*models.DedupGroup, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT group_id, representative_tweet_id, dedup_type, similarity_score, tweet_ids, created_at
		FROM dedup_groups WHERE group_id = $1
	`, groupID)

	g, err := scanDedupGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dedup group %s: %w", groupID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *PostgresDedupRepository) DeleteGroup(ctx context.Context, groupID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE tweets SET dedup_group_id = NULL WHERE dedup_group_id = $1`, groupID); err != nil {
		return fmt.Errorf("clearing dedup back-references for %s: %w", groupID, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM dedup_groups WHERE group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("deleting dedup group %s: %w", groupID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("dedup group %s: %w", groupID, apperr.ErrNotFound)
	}

	return tx.Commit()
}

func (r *PostgresDedupRepository) GroupsForTweets(ctx context.Context, tweetIDs []string) ([]models.DedupGroup, error) {
	if len(tweetIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT g.group_id, g.representative_tweet_id, g.dedup_type, g.similarity_score, g.tweet_ids, g.created_at
		FROM dedup_groups g
		JOIN tweets t ON t.dedup_group_id = g.group_id
		WHERE t.tweet_id = ANY($1)
	`, pq.Array(tweetIDs))
	if err != nil {
		return nil, fmt.Errorf("querying groups for tweets: %w", err)
	}
	defer rows.Close()

	var groups []models.DedupGroup
	for rows.Next() {
		g, err := scanDedupGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dedup group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return groups, nil
}

func scanDedupGroup(scanner rowScanner) (*models.DedupGroup, error) {
	var g models.DedupGroup
	var tweetIDsJSON []byte
	var score sql.NullFloat64

	err := scanner.Scan(&g.GroupID, &g.RepresentativeTweetID, &g.DedupType, &score, &tweetIDsJSON, &g.CreatedAt)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		g.SimilarityScore = &score.Float64
	}
	if len(tweetIDsJSON) > 0 {
		if err := json.Unmarshal(tweetIDsJSON, &g.TweetIDs); err != nil {
			return nil, fmt.Errorf("unmarshalling tweet_ids: %w", err)
		}
	}

	return &g, nil
}
