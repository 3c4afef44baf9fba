package models

import "time"

// TaskStatus is the lifecycle state of a background Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// IsTerminal reports whether the status is one a task cannot transition out
// of.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// TaskProgress tracks how far a running task has advanced.
type TaskProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percentage returns the completion fraction in [0,100], or 0 when Total is
// unset.
func (p TaskProgress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	return (float64(p.Current) / float64(p.Total)) * 100
}

// Task is an in-memory record of a background job's lifecycle, owned
// process-wide by the Task Registry. It does not survive a restart.
type Task struct {
	TaskID      string       `json:"task_id"`
	TaskType    string       `json:"task_type"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Progress    TaskProgress `json:"progress"`
	Result      interface{}  `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}
