package scraper

import (
	"math"

	"github.com/xfeed/xfeed/internal/models"
)

// Default tuning parameters for the limit calculator, fixed by the upstream
// provider's rate characteristics.
const (
	DefaultLimit = 100
	MinLimit     = 10
	MaxLimit     = 300
	emaAlpha     = 0.3
	safetyMargin = 1.2

	emptyFetchThreshold = 3
)

// NextLimit computes the limit parameter for the next fetch of a username
// given its running fetch statistics. stats.TotalFetches == 0 means no prior
// record exists.
func NextLimit(stats models.FetchStats) int {
	if stats.TotalFetches == 0 {
		return DefaultLimit
	}

	if stats.LastNewCount == stats.LastFetchedCount && stats.LastFetchedCount > 0 {
		return min(stats.LastFetchedCount*2, MaxLimit)
	}

	if stats.ConsecutiveEmptyFetches >= emptyFetchThreshold {
		return MinLimit
	}

	raw := float64(stats.LastFetchedCount) * stats.AvgNewRate * safetyMargin
	return clamp(int(math.Round(raw)), MinLimit, MaxLimit)
}

// UpdateStats advances a username's fetch statistics after a fetch of
// fetchedCount tweets yielded newCount previously-unseen tweets.
func UpdateStats(stats models.FetchStats, fetchedCount, newCount int) models.FetchStats {
	stats.LastFetchedCount = fetchedCount
	stats.LastNewCount = newCount
	stats.TotalFetches++

	if fetchedCount > 0 {
		currentRate := float64(newCount) / float64(fetchedCount)
		stats.AvgNewRate = emaAlpha*currentRate + (1-emaAlpha)*stats.AvgNewRate
	}

	if newCount > 0 {
		stats.ConsecutiveEmptyFetches = 0
	} else {
		stats.ConsecutiveEmptyFetches++
	}

	return stats
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
