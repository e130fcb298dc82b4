package service

import (
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	duration := 30 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{name: "at start", now: start, want: 30 * time.Minute},
		{name: "midway", now: start.Add(12 * time.Minute), want: 18 * time.Minute},
		{name: "at deadline", now: start.Add(30 * time.Minute), want: 0},
		{name: "past deadline clamps to zero", now: start.Add(45 * time.Minute), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Remaining(tt.now, start, duration); got != tt.want {
				t.Errorf("Remaining() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	duration := 30 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before deadline", now: start.Add(29 * time.Minute)},
		{name: "one nanosecond before", now: start.Add(duration - time.Nanosecond)},
		{name: "exactly at deadline", now: start.Add(duration), want: true},
		{name: "after deadline", now: start.Add(time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(tt.now, start, duration); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInWindow(t *testing.T) {
	open := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	closed := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		now   time.Time
		start *time.Time
		end   *time.Time
		want  bool
	}{
		{name: "no bounds", now: now, want: true},
		{name: "inside both bounds", now: now, start: &open, end: &closed, want: true},
		{name: "before start", now: open.Add(-time.Minute), start: &open, end: &closed},
		{name: "after end", now: closed.Add(time.Minute), start: &open, end: &closed},
		{name: "exactly at start", now: open, start: &open, end: &closed, want: true},
		{name: "exactly at end", now: closed, start: &open, end: &closed, want: true},
		{name: "only start bound, after it", now: now, start: &open, want: true},
		{name: "only end bound, past it", now: closed.Add(time.Hour), end: &closed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InWindow(tt.now, tt.start, tt.end); got != tt.want {
				t.Errorf("InWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}
