package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

// TweetRepository persists and queries canonical Tweet records.
type TweetRepository interface {
	// Upsert inserts a tweet, returning true if it was newly inserted and
	// false if it already existed (the existing row is left untouched).
	Upsert(ctx context.Context, tweet models.Tweet) (isNew bool, err error)
	GetByID(ctx context.Context, tweetID string) (*models.Tweet, error)
	GetByIDs(ctx context.Context, tweetIDs []string) ([]models.Tweet, error)
	List(ctx context.Context, page, pageSize int, author string) ([]models.Tweet, int, error)
	ListFeed(ctx context.Context, since, until *time.Time, limit int) ([]models.Tweet, error)
	SetDedupGroup(ctx context.Context, tweetID string, groupID *string) error
	ClearReference(ctx context.Context, tweetID string) error
}

// PostgresTweetRepository implements TweetRepository using PostgreSQL.
type PostgresTweetRepository struct {
	db *sql.DB
}

// NewPostgresTweetRepository constructs a PostgresTweetRepository.
func NewPostgresTweetRepository(db *sql.DB) *PostgresTweetRepository {
	return &PostgresTweetRepository{db: db}
}

const tweetColumns = `tweet_id, text, created_at, author_username, author_display_name,
	referenced_tweet_id, reference_type, referenced_tweet_text, referenced_tweet_media,
	referenced_tweet_author_username, media, dedup_group_id, db_created_at`

// Upsert inserts a tweet keyed on tweet_id. On conflict it is a no-op: the
// existing row is the source of truth, since tweets are immutable once
// written. The FK on referenced_tweet_id is not enforced at the schema
// level, so referencing a tweet not yet in the store always succeeds.
func (r *PostgresTweetRepository) Upsert(ctx context.Context, tweet models.Tweet) (bool, error) {
	mediaJSON, err := json.Marshal(tweet.Media)
	if err != nil {
		return false, fmt.Errorf("marshalling media: %w", err)
	}
	refMediaJSON, err := json.Marshal(tweet.ReferencedTweetMedia)
	if err != nil {
		return false, fmt.Errorf("marshalling referenced_tweet_media: %w", err)
	}

	if tweet.DBCreatedAt.IsZero() {
		tweet.DBCreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tweets (` + tweetColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (tweet_id) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query,
		tweet.TweetID,
		tweet.Text,
		tweet.CreatedAt,
		tweet.AuthorUsername,
		tweet.AuthorDisplayName,
		tweet.ReferencedTweetID,
		tweet.ReferenceType,
		tweet.ReferencedTweetText,
		refMediaJSON,
		tweet.ReferencedTweetAuthor,
		mediaJSON,
		tweet.DedupGroupID,
		tweet.DBCreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("upserting tweet %s: %w", tweet.TweetID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}

	return rows > 0, nil
}

// ClearReference nulls referenced_tweet_id while preserving reference_type,
// used when an FK-style lookup finds the referenced tweet is not locally
// stored; the relation is informational, not enforced.
func (r *PostgresTweetRepository) ClearReference(ctx context.Context, tweetID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tweets SET referenced_tweet_id = NULL WHERE tweet_id = $1`, tweetID)
	if err != nil {
		return fmt.Errorf("clearing reference for %s: %w", tweetID, err)
	}
	return nil
}

func (r *PostgresTweetRepository) GetByID(ctx context.Context, tweetID string) (*models.Tweet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE tweet_id = $1`, tweetID)
	tw, err := scanTweet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tweet %s: %w", tweetID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tw, nil
}

func (r *PostgresTweetRepository) GetByIDs(ctx context.Context, tweetIDs []string) ([]models.Tweet, error) {
	if len(tweetIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE tweet_id = ANY($1)`, pq.Array(tweetIDs))
	if err != nil {
		return nil, fmt.Errorf("querying tweets by id: %w", err)
	}
	defer rows.Close()

	return scanTweets(rows)
}

func (r *PostgresTweetRepository) List(ctx context.Context, page, pageSize int, author string) ([]models.Tweet, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int
	var countQuery string
	var countArgs []interface{}
	if author != "" {
		countQuery = `SELECT COUNT(*) FROM tweets WHERE author_username = $1`
		countArgs = []interface{}{author}
	} else {
		countQuery = `SELECT COUNT(*) FROM tweets`
	}
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting tweets: %w", err)
	}

	var rows *sql.Rows
	var err error
	if author != "" {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+tweetColumns+` FROM tweets WHERE author_username = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			author, pageSize, offset)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+tweetColumns+` FROM tweets ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			pageSize, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("listing tweets: %w", err)
	}
	defer rows.Close()

	tweets, err := scanTweets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tweets, total, nil
}

func (r *PostgresTweetRepository) ListFeed(ctx context.Context, since, until *time.Time, limit int) ([]models.Tweet, error) {
	if limit < 1 {
		limit = 100
	}

	query := `SELECT ` + tweetColumns + ` FROM tweets WHERE ($1::timestamptz IS NULL OR db_created_at > $1)
		AND ($2::timestamptz IS NULL OR db_created_at <= $2) ORDER BY db_created_at ASC LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("querying feed: %w", err)
	}
	defer rows.Close()

	return scanTweets(rows)
}

func (r *PostgresTweetRepository) SetDedupGroup(ctx context.Context, tweetID string, groupID *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tweets SET dedup_group_id = $1 WHERE tweet_id = $2`, groupID, tweetID)
	if err != nil {
		return fmt.Errorf("setting dedup_group_id for %s: %w", tweetID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTweet(scanner rowScanner) (*models.Tweet, error) {
	var tw models.Tweet
	var mediaJSON, refMediaJSON []byte
	var refID sql.NullString
	var refType sql.NullString

	err := scanner.Scan(
		&tw.TweetID,
		&tw.Text,
		&tw.CreatedAt,
		&tw.AuthorUsername,
		&tw.AuthorDisplayName,
		&refID,
		&refType,
		&tw.ReferencedTweetText,
		&refMediaJSON,
		&tw.ReferencedTweetAuthor,
		&mediaJSON,
		&tw.DedupGroupID,
		&tw.DBCreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if refID.Valid {
		tw.ReferencedTweetID = &refID.String
	}
	if refType.Valid {
		rt := models.ReferenceType(refType.String)
		tw.ReferenceType = &rt
	}
	if len(mediaJSON) > 0 {
		if err := json.Unmarshal(mediaJSON, &tw.Media); err != nil {
			return nil, fmt.Errorf("unmarshalling media: %w", err)
		}
	}
	if len(refMediaJSON) > 0 {
		if err := json.Unmarshal(refMediaJSON, &tw.ReferencedTweetMedia); err != nil {
			return nil, fmt.Errorf("unmarshalling referenced_tweet_media: %w", err)
		}
	}

	return &tw, nil
}

func scanTweets(rows *sql.Rows) ([]models.Tweet, error) {
	var tweets []models.Tweet
	for rows.Next() {
		tw, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tweet: %w", err)
		}
		tweets = append(tweets, *tw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tweets, nil
}
