package service

import "time"

// Time-boxing rules. All comparisons use the single authoritative server
// clock passed in as now; clients never supply elapsed time, so clock skew on
// their side cannot extend an attempt.

// Remaining returns the time left on an attempt, clamped to >= 0.
func Remaining(now, startTime time.Time, duration time.Duration) time.Duration {
	remaining := duration - now.Sub(startTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether the attempt's time budget has elapsed.
func IsExpired(now, startTime time.Time, duration time.Duration) bool {
	return now.Sub(startTime) >= duration
}

// InWindow reports whether now falls inside the exam's availability window.
// Either bound may be nil; an absent bound imposes no restriction on that side.
func InWindow(now time.Time, windowStart, windowEnd *time.Time) bool {
	if windowStart != nil && now.Before(*windowStart) {
		return false
	}
	if windowEnd != nil && now.After(*windowEnd) {
		return false
	}
	return true
}
