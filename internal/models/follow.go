package models

import "time"

// ScraperFollow is a platform-level account the scraper pulls from.
// Soft-deleted via IsActive=false rather than row removal, so historical
// tweets retain a stable author reference.
type ScraperFollow struct {
	Username  string    `json:"username"`
	Reason    string    `json:"reason,omitempty"`
	AddedBy   string    `json:"added_by"`
	AddedAt   time.Time `json:"added_at"`
	IsActive  bool      `json:"is_active"`
}

// UserFollow is a per-user subset of the platform follow list with display
// priority. Every UserFollow's Username must reference an active
// ScraperFollow.
type UserFollow struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Priority int    `json:"priority"`
}

const (
	defaultFollowPriority = 5
	minFollowPriority     = 1
	maxFollowPriority     = 10
)

// NormalizePriority clamps Priority into [1,10], defaulting to 5 when unset.
func (f *UserFollow) NormalizePriority() {
	if f.Priority == 0 {
		f.Priority = defaultFollowPriority
		return
	}
	if f.Priority < minFollowPriority {
		f.Priority = minFollowPriority
	}
	if f.Priority > maxFollowPriority {
		f.Priority = maxFollowPriority
	}
}
