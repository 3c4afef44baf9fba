package models

import "time"

// FetchStats is the running per-username counters the Limit Calculator uses
// to adapt the next fetch size.
type FetchStats struct {
	Username                string    `json:"username"`
	LastFetchAt             time.Time `json:"last_fetch_at"`
	LastFetchedCount        int       `json:"last_fetched_count"`
	LastNewCount             int      `json:"last_new_count"`
	TotalFetches            int       `json:"total_fetches"`
	AvgNewRate              float64   `json:"avg_new_rate"`
	ConsecutiveEmptyFetches int       `json:"consecutive_empty_fetches"`
}
