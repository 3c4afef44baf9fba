// Package tasks implements the Task Registry: a process-wide, in-memory
// mapping from task_id to lifecycle state, observed by HTTP polling and
// used by the Scrape Coordinator's post-processing hook to report progress
// without blocking on it. Task Records do not survive a restart.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xfeed/xfeed/internal/apperr"
	"github.com/xfeed/xfeed/internal/models"
)

// Filter narrows List results.
type Filter struct {
	TaskType string
	Status   models.TaskStatus
}

// Registry is the single process-wide Task Record store. All mutations are
// serialised by mu; a background sweep goroutine removes records whose
// terminal timestamp is older than ttl.
type Registry struct {
	mu      sync.Mutex
	tasks   map[string]*models.Task
	running map[string]string // task_type -> task_id currently running
	ttl     time.Duration
	logger  *slog.Logger
}

// New constructs a Registry with the default 24h sweep TTL.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tasks:   make(map[string]*models.Task),
		running: make(map[string]string),
		ttl:     24 * time.Hour,
		logger:  logger,
	}
}

// Create registers a new pending Task Record and returns its task_id.
func (r *Registry) Create(taskType string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	taskID := uuid.New().String()
	r.tasks[taskID] = &models.Task{
		TaskID:    taskID,
		TaskType:  taskType,
		Status:    models.TaskPending,
		CreatedAt: time.Now().UTC(),
	}
	return taskID
}

// Get returns the Task Record for taskID.
func (r *Registry) Get(taskID string) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	return *t, nil
}

// UpdateStatus transitions a task's status. Terminal states are monotonic:
// once completed or failed, further UpdateStatus calls are silently
// rejected rather than overwriting the terminal record.
func (r *Registry) UpdateStatus(taskID string, status models.TaskStatus, result interface{}, taskErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	if t.Status.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	if t.Status == models.TaskPending && status == models.TaskRunning {
		t.StartedAt = &now
		r.running[t.TaskType] = taskID
	}

	t.Status = status
	if result != nil {
		t.Result = result
	}
	if taskErr != nil {
		t.Error = taskErr.Error()
	}

	if status.IsTerminal() {
		t.CompletedAt = &now
		if r.running[t.TaskType] == taskID {
			delete(r.running, t.TaskType)
		}
	}

	return nil
}

// UpdateProgress records a running task's current/total progress.
func (r *Registry) UpdateProgress(taskID string, current, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	t.Progress = models.TaskProgress{Current: current, Total: total}
	return nil
}

// IsRunning reports whether a task of taskType is currently running.
func (r *Registry) IsRunning(taskType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.running[taskType]
	return ok
}

// List returns Task Records matching filter, newest first. A zero-value
// Filter matches everything.
func (r *Registry) List(filter Filter) []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Task
	for _, t := range r.tasks {
		if filter.TaskType != "" && t.TaskType != filter.TaskType {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, *t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes a Task Record. Deleting a running task is forbidden.
func (r *Registry) Delete(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	if t.Status == models.TaskRunning {
		return fmt.Errorf("task %s is running: %w", taskID, apperr.ErrConflict)
	}

	delete(r.tasks, taskID)
	return nil
}

// Go runs fn in a goroutine, bracketing it with the Running/Completed(or
// Failed) status transitions so callers (e.g. the Scrape Coordinator) don't
// have to manage the Task Record lifecycle themselves.
func (r *Registry) Go(taskID string, fn func(ctx context.Context) (interface{}, error)) {
	if err := r.UpdateStatus(taskID, models.TaskRunning, nil, nil); err != nil {
		r.logger.Error("starting task failed", "task_id", taskID, "error", err)
		return
	}

	go func() {
		result, err := fn(context.Background())
		if err != nil {
			if updErr := r.UpdateStatus(taskID, models.TaskFailed, nil, err); updErr != nil {
				r.logger.Error("recording task failure failed", "task_id", taskID, "error", updErr)
			}
			return
		}
		if updErr := r.UpdateStatus(taskID, models.TaskCompleted, result, nil); updErr != nil {
			r.logger.Error("recording task completion failed", "task_id", taskID, "error", updErr)
		}
	}()
}

// StartSweep runs a ticker-driven loop that removes terminal Task Records
// older than the registry's TTL, until ctx is cancelled.
func (r *Registry) StartSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	removed := 0
	for id, t := range r.tasks {
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("swept expired task records", "removed", removed)
	}
}
