package models

import "time"

// MinIntervalSeconds and MaxIntervalSeconds bound ScheduleConfig.IntervalSeconds.
const (
	MinIntervalSeconds = 300
	MaxIntervalSeconds = 604800
)

// ScheduleConfig is the singleton (id=1) row governing the scraper_job.
type ScheduleConfig struct {
	ID              int        `json:"id"`
	IntervalSeconds int        `json:"interval_seconds"`
	NextRunTime     *time.Time `json:"next_run_time,omitempty"`
	Enabled         bool       `json:"enabled"`
	UpdatedAt       time.Time  `json:"updated_at"`
	UpdatedBy       string     `json:"updated_by,omitempty"`
}

// Validate enforces the interval range invariant.
func (c *ScheduleConfig) Validate() error {
	if c.IntervalSeconds < MinIntervalSeconds || c.IntervalSeconds > MaxIntervalSeconds {
		return errf("interval_seconds must be in [%d, %d]", MinIntervalSeconds, MaxIntervalSeconds)
	}
	return nil
}
