// Package scheduler implements the single named scraper_job: a
// max_instances=1 ticker loop that invokes the Scrape Coordinator over the
// active follow list, with an admin-operable Idle/Running/Paused/
// Unconfigured state machine restored from the persisted Schedule Config
// singleton on restart.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/coordinate"
	"github.com/xfeed/xfeed/internal/models"
	"github.com/xfeed/xfeed/internal/store"
)

// FollowRepository is the subset of store.FollowRepository the scheduler
// needs to resolve scraper_job's username list.
type FollowRepository interface {
	ListActive(ctx context.Context) ([]models.ScraperFollow, error)
}

// Coordinator is satisfied by *coordinate.Coordinator.
type Coordinator interface {
	ScrapeUsers(ctx context.Context, usernames []string, overrideLimit ...int) (coordinate.ScrapeResult, error)
}

// Scheduler drives scraper_job. It is grounded on
// internal/scheduler/summary_scheduler.go's ticker loop, generalised to the
// single job's state machine and persisted Schedule Config singleton.
type Scheduler struct {
	mu    sync.Mutex
	state State

	cfg      models.ScheduleConfig
	nextTick time.Time

	follows     FollowRepository
	coordinator Coordinator
	schedule    store.ScheduleRepository
	logger      *slog.Logger

	checkInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// New constructs a Scheduler. It does not start ticking until Start is
// called, and does not become configured until the Schedule Config row is
// loaded (by Start) or Enable is called.
func New(follows FollowRepository, coordinator Coordinator, schedule store.ScheduleRepository, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		state:         StateUnconfigured,
		follows:       follows,
		coordinator:   coordinator,
		schedule:      schedule,
		logger:        logger,
		checkInterval: 1 * time.Minute,
		stopChan:      make(chan struct{}),
	}
}

// Start restores persisted state and begins the tick loop. It blocks until
// ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.restore(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop halts the tick loop. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// restore loads the Schedule Config singleton and sets the initial state,
// per §4.7's "on process restart, the scheduler reads the singleton row and
// restores state".
func (s *Scheduler) restore(ctx context.Context) {
	cfg, err := s.schedule.Get(ctx)
	if err != nil {
		s.logger.Error("loading schedule config failed, starting unconfigured", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	if cfg.UpdatedAt.IsZero() {
		s.state = StateUnconfigured
		return
	}
	if !cfg.Enabled {
		s.state = StatePaused
		return
	}
	s.state = StateIdle
	s.nextTick = s.computeNextTick()
}

// tick fires on every checkInterval; it runs scraper_job if due.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	due := !s.nextTick.After(time.Now())
	if !due {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	oneShot := s.cfg.NextRunTime != nil
	s.mu.Unlock()

	s.logger.Info("scraper_job tick due, starting run", "one_shot", oneShot)
	s.runJob(ctx, oneShot)
}

// runJob executes one scraper_job invocation and transitions back to Idle
// with the next tick scheduled, per §4.7's Running -> Idle edge.
func (s *Scheduler) runJob(ctx context.Context, wasOneShot bool) {
	usernames, err := s.follows.ListActive(ctx)
	if err != nil {
		s.logger.Error("listing active follows failed", "error", err)
		s.finishRun(ctx, wasOneShot)
		return
	}
	if len(usernames) == 0 {
		s.logger.Debug("no active follows, skipping scrape_job run")
		s.finishRun(ctx, wasOneShot)
		return
	}

	names := make([]string, len(usernames))
	for i, f := range usernames {
		names[i] = f.Username
	}

	result, err := s.coordinator.ScrapeUsers(ctx, names)
	if err != nil {
		s.logger.Error("scraper_job run failed", "error", err)
	} else {
		s.logger.Info("scraper_job run completed",
			"total_users", result.TotalUsers,
			"new_tweets", result.NewTweets,
			"elapsed_ms", result.ElapsedMs,
		)
	}

	s.finishRun(ctx, wasOneShot)
}

func (s *Scheduler) finishRun(ctx context.Context, wasOneShot bool) {
	s.mu.Lock()
	s.state = StateIdle
	s.nextTick = time.Now().Add(time.Duration(s.cfg.IntervalSeconds) * time.Second)
	s.mu.Unlock()

	if wasOneShot {
		if err := s.schedule.ClearNextRunTime(ctx); err != nil {
			s.logger.Error("clearing one-shot next_run_time failed", "error", err)
		}
		s.mu.Lock()
		s.cfg.NextRunTime = nil
		s.mu.Unlock()
	}
}

func (s *Scheduler) computeNextTick() time.Time {
	if s.cfg.NextRunTime != nil {
		return *s.cfg.NextRunTime
	}
	return time.Now().Add(time.Duration(s.cfg.IntervalSeconds) * time.Second)
}

// CurrentState reports the scheduler's current position in the state
// machine, for health checks and admin inspection.
func (s *Scheduler) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot is the scheduler's state exposed to the admin schedule endpoints.
type Snapshot struct {
	State           State      `json:"state"`
	IntervalSeconds int        `json:"interval_seconds"`
	NextRunTime     *time.Time `json:"next_run_time,omitempty"`
	NextTick        *time.Time `json:"next_tick,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	UpdatedBy       string     `json:"updated_by,omitempty"`
}

// Snapshot reports the scheduler's current state and config for GET
// /api/admin/scraping/schedule.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:           s.state,
		IntervalSeconds: s.cfg.IntervalSeconds,
		NextRunTime:     s.cfg.NextRunTime,
		UpdatedAt:       s.cfg.UpdatedAt,
		UpdatedBy:       s.cfg.UpdatedBy,
	}
	if s.state == StateIdle {
		nt := s.nextTick
		snap.NextTick = &nt
	}
	return snap
}

// Enable transitions Unconfigured or Paused -> Idle, persisting is_enabled.
func (s *Scheduler) Enable(ctx context.Context, interval int, updatedBy string) error {
	s.mu.Lock()
	if s.state != StateUnconfigured && s.state != StatePaused {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already enabled: %w", apperr.ErrConflict)
	}
	if interval == 0 {
		interval = s.cfg.IntervalSeconds
	}
	if interval == 0 {
		interval = models.MinIntervalSeconds
	}
	cfg := models.ScheduleConfig{
		IntervalSeconds: interval,
		Enabled:         true,
		UpdatedAt:       time.Now().UTC(),
		UpdatedBy:       updatedBy,
	}
	s.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	if err := s.schedule.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("persisting schedule config: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.state = StateIdle
	s.nextTick = s.computeNextTick()
	s.mu.Unlock()
	return nil
}

// Disable transitions Idle -> Paused, after which no new ticks are
// scheduled. In any other state, including while a job is Running, it
// returns ErrConflict.
func (s *Scheduler) Disable(ctx context.Context, updatedBy string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not idle: %w", apperr.ErrConflict)
	}
	cfg := s.cfg
	cfg.Enabled = false
	cfg.UpdatedAt = time.Now().UTC()
	cfg.UpdatedBy = updatedBy
	s.mu.Unlock()

	if err := s.schedule.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("persisting schedule config: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.state = StatePaused
	s.mu.Unlock()
	return nil
}

// UpdateInterval reschedules the next regular tick without changing state.
func (s *Scheduler) UpdateInterval(ctx context.Context, seconds int, updatedBy string) error {
	s.mu.Lock()
	if s.state == StateUnconfigured {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not configured: %w", apperr.ErrConflict)
	}
	cfg := s.cfg
	cfg.IntervalSeconds = seconds
	cfg.UpdatedAt = time.Now().UTC()
	cfg.UpdatedBy = updatedBy
	s.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	if err := s.schedule.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("persisting schedule config: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	if s.state == StateIdle && s.cfg.NextRunTime == nil {
		s.nextTick = s.computeNextTick()
	}
	s.mu.Unlock()
	return nil
}

// SetNextRunTime schedules a one-shot run. ts may be at most
// minNextRunTolerance seconds in the past and no more than maxNextRunDays
// days out.
func (s *Scheduler) SetNextRunTime(ctx context.Context, ts time.Time, updatedBy string) error {
	now := time.Now()
	if ts.Before(now.Add(-minNextRunTolerance * time.Second)) {
		return fmt.Errorf("next_run_time must be in the future: %w", apperr.ErrValidation)
	}
	if ts.After(now.Add(maxNextRunDays * 24 * time.Hour)) {
		return fmt.Errorf("next_run_time must be within %d days: %w", maxNextRunDays, apperr.ErrValidation)
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not idle: %w", apperr.ErrConflict)
	}
	cfg := s.cfg
	cfg.NextRunTime = &ts
	cfg.UpdatedAt = time.Now().UTC()
	cfg.UpdatedBy = updatedBy
	s.mu.Unlock()

	if err := s.schedule.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("persisting schedule config: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.nextTick = ts
	s.mu.Unlock()
	return nil
}
