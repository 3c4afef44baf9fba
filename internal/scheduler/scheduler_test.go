package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/coordinate"
	"github.com/xfeed/xfeed/internal/models"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeFollowRepo struct{ usernames []string }

func (f *fakeFollowRepo) ListActive(ctx context.Context) ([]models.ScraperFollow, error) {
	out := make([]models.ScraperFollow, len(f.usernames))
	for i, u := range f.usernames {
		out[i] = models.ScraperFollow{Username: u, IsActive: true}
	}
	return out, nil
}

type fakeCoordinator struct {
	calls  int
	result coordinate.ScrapeResult
	err    error
}

func (f *fakeCoordinator) ScrapeUsers(ctx context.Context, usernames []string, overrideLimit ...int) (coordinate.ScrapeResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeScheduleRepo struct{ cfg models.ScheduleConfig }

func (r *fakeScheduleRepo) Get(ctx context.Context) (models.ScheduleConfig, error) { return r.cfg, nil }
func (r *fakeScheduleRepo) Upsert(ctx context.Context, cfg models.ScheduleConfig) error {
	r.cfg = cfg
	return nil
}
func (r *fakeScheduleRepo) ClearNextRunTime(ctx context.Context) error {
	r.cfg.NextRunTime = nil
	return nil
}

func TestNew_StartsUnconfigured(t *testing.T) {
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, &fakeScheduleRepo{}, testLogger())
	if s.CurrentState() != StateUnconfigured {
		t.Errorf("state = %v, want unconfigured", s.CurrentState())
	}
}

func TestRestore_DisabledRowIsPaused(t *testing.T) {
	repo := &fakeScheduleRepo{cfg: models.ScheduleConfig{IntervalSeconds: 600, Enabled: false, UpdatedAt: time.Now()}}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	s.restore(context.Background())
	if s.CurrentState() != StatePaused {
		t.Errorf("state = %v, want paused", s.CurrentState())
	}
}

func TestRestore_EnabledRowIsIdle(t *testing.T) {
	repo := &fakeScheduleRepo{cfg: models.ScheduleConfig{IntervalSeconds: 600, Enabled: true, UpdatedAt: time.Now()}}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	s.restore(context.Background())
	if s.CurrentState() != StateIdle {
		t.Errorf("state = %v, want idle", s.CurrentState())
	}
}

func TestEnable_UnconfiguredToIdle(t *testing.T) {
	repo := &fakeScheduleRepo{}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())

	if err := s.Enable(context.Background(), 600, "admin"); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if s.CurrentState() != StateIdle {
		t.Errorf("state = %v, want idle", s.CurrentState())
	}
	if !repo.cfg.Enabled {
		t.Error("expected persisted config to be enabled")
	}
}

func TestEnable_AlreadyEnabledIsConflict(t *testing.T) {
	repo := &fakeScheduleRepo{}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	err := s.Enable(context.Background(), 600, "admin")
	if !apperr.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestEnable_InvalidIntervalIsValidationError(t *testing.T) {
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, &fakeScheduleRepo{}, testLogger())
	err := s.Enable(context.Background(), 10, "admin")
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for too-small interval, got %v", err)
	}
}

func TestDisable_IdleToPaused(t *testing.T) {
	repo := &fakeScheduleRepo{}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	if err := s.Disable(context.Background(), "admin"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if s.CurrentState() != StatePaused {
		t.Errorf("state = %v, want paused", s.CurrentState())
	}
	if repo.cfg.Enabled {
		t.Error("expected persisted config to be disabled")
	}
}

func TestDisable_NotIdleIsConflict(t *testing.T) {
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, &fakeScheduleRepo{}, testLogger())
	err := s.Disable(context.Background(), "admin")
	if !apperr.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict disabling an unconfigured scheduler, got %v", err)
	}
}

func TestUpdateInterval_ReschedulesWhileIdle(t *testing.T) {
	repo := &fakeScheduleRepo{}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	if err := s.UpdateInterval(context.Background(), 1200, "admin"); err != nil {
		t.Fatalf("UpdateInterval() error = %v", err)
	}
	if s.CurrentState() != StateIdle {
		t.Errorf("state = %v, want idle", s.CurrentState())
	}
	if repo.cfg.IntervalSeconds != 1200 {
		t.Errorf("interval = %d, want 1200", repo.cfg.IntervalSeconds)
	}
}

func TestSetNextRunTime_TooSoonIsValidationError(t *testing.T) {
	repo := &fakeScheduleRepo{}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	err := s.SetNextRunTime(context.Background(), time.Now().Add(-time.Hour), "admin")
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for a past next_run_time, got %v", err)
	}
}

func TestSetNextRunTime_TooFarIsValidationError(t *testing.T) {
	repo := &fakeScheduleRepo{}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	err := s.SetNextRunTime(context.Background(), time.Now().Add(40*24*time.Hour), "admin")
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for a next_run_time beyond 30 days, got %v", err)
	}
}

func TestSetNextRunTime_SchedulesOneShot(t *testing.T) {
	repo := &fakeScheduleRepo{}
	s := New(&fakeFollowRepo{}, &fakeCoordinator{}, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	ts := time.Now().Add(time.Hour)
	if err := s.SetNextRunTime(context.Background(), ts, "admin"); err != nil {
		t.Fatalf("SetNextRunTime() error = %v", err)
	}
	if repo.cfg.NextRunTime == nil {
		t.Fatal("expected next_run_time to be persisted")
	}
}

func TestTick_RunsJobWhenDueAndReturnsToIdle(t *testing.T) {
	repo := &fakeScheduleRepo{}
	coord := &fakeCoordinator{result: coordinate.ScrapeResult{NewTweets: 2}}
	s := New(&fakeFollowRepo{usernames: []string{"alice"}}, coord, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	s.mu.Lock()
	s.nextTick = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.tick(context.Background())

	if coord.calls != 1 {
		t.Errorf("coordinator.calls = %d, want 1", coord.calls)
	}
	if s.CurrentState() != StateIdle {
		t.Errorf("state after run = %v, want idle", s.CurrentState())
	}
}

func TestTick_SkipsWhenNotDue(t *testing.T) {
	repo := &fakeScheduleRepo{}
	coord := &fakeCoordinator{}
	s := New(&fakeFollowRepo{usernames: []string{"alice"}}, coord, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	s.tick(context.Background())

	if coord.calls != 0 {
		t.Errorf("coordinator.calls = %d, want 0 (not due yet)", coord.calls)
	}
}

func TestTick_SkipsOverlapWhileRunning(t *testing.T) {
	repo := &fakeScheduleRepo{}
	coord := &fakeCoordinator{}
	s := New(&fakeFollowRepo{usernames: []string{"alice"}}, coord, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")

	s.mu.Lock()
	s.state = StateRunning
	s.nextTick = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.tick(context.Background())

	if coord.calls != 0 {
		t.Errorf("coordinator.calls = %d, want 0 (overlap must be skipped)", coord.calls)
	}
}

func TestRunJob_OneShotClearsNextRunTime(t *testing.T) {
	repo := &fakeScheduleRepo{}
	coord := &fakeCoordinator{}
	s := New(&fakeFollowRepo{usernames: []string{"alice"}}, coord, repo, testLogger())
	_ = s.Enable(context.Background(), 600, "admin")
	ts := time.Now().Add(time.Hour)
	_ = s.SetNextRunTime(context.Background(), ts, "admin")

	s.runJob(context.Background(), true)

	if repo.cfg.NextRunTime != nil {
		t.Error("expected one-shot next_run_time to be cleared after the run")
	}
}
