package dedup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

type fakeTweetRepo struct {
	tweets map[string]models.Tweet
}

func newFakeTweetRepo(tweets ...models.Tweet) *fakeTweetRepo {
	r := &fakeTweetRepo{tweets: make(map[string]models.Tweet)}
	for _, tw := range tweets {
		r.tweets[tw.TweetID] = tw
	}
	return r
}

func (r *fakeTweetRepo) Upsert(ctx context.Context, tweet models.Tweet) (bool, error) {
	if _, ok := r.tweets[tweet.TweetID]; ok {
		return false, nil
	}
	r.tweets[tweet.TweetID] = tweet
	return true, nil
}

func (r *fakeTweetRepo) GetByID(ctx context.Context, tweetID string) (*models.Tweet, error) {
	tw, ok := r.tweets[tweetID]
	if !ok {
		return nil, fmt.Errorf("tweet %s: %w", tweetID, apperr.ErrNotFound)
	}
	return &tw, nil
}

func (r *fakeTweetRepo) GetByIDs(ctx context.Context, tweetIDs []string) ([]models.Tweet, error) {
	var out []models.Tweet
	for _, id := range tweetIDs {
		if tw, ok := r.tweets[id]; ok {
			out = append(out, tw)
		}
	}
	return out, nil
}

func (r *fakeTweetRepo) List(ctx context.Context, page, pageSize int, author string) ([]models.Tweet, int, error) {
	return nil, 0, nil
}

func (r *fakeTweetRepo) ListFeed(ctx context.Context, since, until *time.Time, limit int) ([]models.Tweet, error) {
	return nil, nil
}

func (r *fakeTweetRepo) SetDedupGroup(ctx context.Context, tweetID string, groupID *string) error {
	tw := r.tweets[tweetID]
	tw.DedupGroupID = groupID
	r.tweets[tweetID] = tw
	return nil
}

func (r *fakeTweetRepo) ClearReference(ctx context.Context, tweetID string) error {
	return nil
}

type fakeDedupRepo struct {
	groups map[string]models.DedupGroup
	tweets *fakeTweetRepo
}

func newFakeDedupRepo(tweets *fakeTweetRepo) *fakeDedupRepo {
	return &fakeDedupRepo{groups: make(map[string]models.DedupGroup), tweets: tweets}
}

func (r *fakeDedupRepo) SaveGroups(ctx context.Context, groups []models.DedupGroup) error {
	for _, g := range groups {
		r.groups[g.GroupID] = g
		for _, id := range g.TweetIDs {
			groupID := g.GroupID
			if err := r.tweets.SetDedupGroup(ctx, id, &groupID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *fakeDedupRepo) GetGroup(ctx context.Context, groupID string) (*models.DedupGroup, error) {
	g, ok := r.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("dedup group %s: %w", groupID, apperr.ErrNotFound)
	}
	return &g, nil
}

func (r *fakeDedupRepo) DeleteGroup(ctx context.Context, groupID string) error {
	g, ok := r.groups[groupID]
	if !ok {
		return fmt.Errorf("dedup group %s: %w", groupID, apperr.ErrNotFound)
	}
	for _, id := range g.TweetIDs {
		if err := r.tweets.SetDedupGroup(ctx, id, nil); err != nil {
			return err
		}
	}
	delete(r.groups, groupID)
	return nil
}

func (r *fakeDedupRepo) GroupsForTweets(ctx context.Context, tweetIDs []string) ([]models.DedupGroup, error) {
	wanted := make(map[string]bool, len(tweetIDs))
	for _, id := range tweetIDs {
		wanted[id] = true
	}
	var out []models.DedupGroup
	for _, g := range r.groups {
		for _, id := range g.TweetIDs {
			if wanted[id] {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeduplicate_ExactAndSimilar(t *testing.T) {
	t1 := models.Tweet{TweetID: "t1", AuthorUsername: "alice", Text: "Breaking: AI wins", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	t2 := models.Tweet{TweetID: "t2", AuthorUsername: "alice", Text: "Breaking: AI wins", CreatedAt: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)}
	t3 := models.Tweet{TweetID: "t3", AuthorUsername: "alice", Text: "AI triumphs in breaking news today", CreatedAt: time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC)}
	t4 := models.Tweet{TweetID: "t4", AuthorUsername: "bob", Text: "Weather is fine", CreatedAt: time.Date(2026, 1, 1, 0, 3, 0, 0, time.UTC)}

	tweetRepo := newFakeTweetRepo(t1, t2, t3, t4)
	dedupRepo := newFakeDedupRepo(tweetRepo)
	engine := New(tweetRepo, dedupRepo, DefaultConfig(), testLogger())

	stats, err := engine.Deduplicate(context.Background(), []string{"t1", "t2", "t3", "t4"}, false)
	if err != nil {
		t.Fatalf("Deduplicate() error = %v", err)
	}

	if stats.ExactGroups != 1 {
		t.Errorf("expected 1 exact group, got %d", stats.ExactGroups)
	}

	var exactGroup *models.DedupGroup
	for i := range stats.Groups {
		if stats.Groups[i].DedupType == models.DedupExact {
			exactGroup = &stats.Groups[i]
		}
	}
	if exactGroup == nil {
		t.Fatal("expected an exact_duplicate group")
	}
	if exactGroup.RepresentativeTweetID != "t1" {
		t.Errorf("representative should be the earliest-created member t1, got %s", exactGroup.RepresentativeTweetID)
	}

	got, err := tweetRepo.GetByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DedupGroupID == nil {
		t.Error("t1 should have its dedup_group_id back-reference set")
	}

	got4, _ := tweetRepo.GetByID(context.Background(), "t4")
	if got4.DedupGroupID != nil {
		t.Error("t4 should remain ungrouped")
	}
}

func TestDeduplicate_ExcludesAlreadyGroupedUnlessForceRefresh(t *testing.T) {
	groupID := "g1"
	t1 := models.Tweet{TweetID: "t1", AuthorUsername: "alice", Text: "Breaking: AI wins", CreatedAt: time.Now(), DedupGroupID: &groupID}
	t2 := models.Tweet{TweetID: "t2", AuthorUsername: "alice", Text: "Breaking: AI wins", CreatedAt: time.Now()}

	tweetRepo := newFakeTweetRepo(t1, t2)
	dedupRepo := newFakeDedupRepo(tweetRepo)
	dedupRepo.groups[groupID] = models.DedupGroup{GroupID: groupID, RepresentativeTweetID: "t1", DedupType: models.DedupExact, TweetIDs: []string{"t1"}}
	engine := New(tweetRepo, dedupRepo, DefaultConfig(), testLogger())

	stats, err := engine.Deduplicate(context.Background(), []string{"t1", "t2"}, false)
	if err != nil {
		t.Fatalf("Deduplicate() error = %v", err)
	}
	if stats.TweetsProcessed != 1 {
		t.Errorf("expected only the ungrouped tweet to be processed, got %d", stats.TweetsProcessed)
	}

	stats, err = engine.Deduplicate(context.Background(), []string{"t1", "t2"}, true)
	if err != nil {
		t.Fatalf("Deduplicate(forceRefresh) error = %v", err)
	}
	if stats.TweetsProcessed != 2 {
		t.Errorf("expected force refresh to reprocess both tweets, got %d", stats.TweetsProcessed)
	}
	if stats.ExactGroups != 1 {
		t.Errorf("expected force refresh to regroup t1 and t2 as exact duplicates, got %d", stats.ExactGroups)
	}
}

func TestDeduplicate_EmptyInputIsZeroWorkSuccess(t *testing.T) {
	tweetRepo := newFakeTweetRepo()
	dedupRepo := newFakeDedupRepo(tweetRepo)
	engine := New(tweetRepo, dedupRepo, DefaultConfig(), testLogger())

	stats, err := engine.Deduplicate(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Deduplicate() error = %v", err)
	}
	if stats.TweetsProcessed != 0 {
		t.Errorf("expected zero-work result, got %+v", stats)
	}
}
