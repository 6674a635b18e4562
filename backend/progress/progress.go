// Package progress holds the arithmetic and policies behind enrollment progress.
package progress

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Policy decides what content changes do to enrollments that already counted.
type Policy string

const (
	// PolicySticky never lowers a percentage; a completed enrollment stays completed
	// when lessons are added later.
	PolicySticky Policy = "sticky"
	// PolicyRecount recomputes enrollments when lessons are added or removed, which
	// can lower the percentage and clear completion.
	PolicyRecount Policy = "recount"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySticky:
		return PolicySticky, nil
	case PolicyRecount:
		return PolicyRecount, nil
	}
	return "", fmt.Errorf("unknown completion policy %q", s)
}

// Percentage is completed/total as an integer percent. It rounds down so that 100
// is only reported when every lesson is complete.
func Percentage(completed, total int64) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(completed * 100 / total)
}

// State is the derived progress stored on an enrollment.
type State struct {
	Percentage  int
	Completed   bool
	CompletedAt *time.Time
}

// Advance folds a fresh lesson count into the previous state.
func Advance(prev State, completed, total int64, policy Policy, now time.Time) State {
	pct := Percentage(completed, total)

	if policy != PolicyRecount {
		if prev.Completed {
			return State{Percentage: 100, Completed: true, CompletedAt: prev.CompletedAt}
		}
		if pct < prev.Percentage {
			pct = prev.Percentage
		}
	}

	next := State{Percentage: pct}
	if pct == 100 {
		next.Completed = true
		next.CompletedAt = prev.CompletedAt
		if next.CompletedAt == nil {
			at := now.UTC()
			next.CompletedAt = &at
		}
	}
	return next
}

// Threshold is the watched percentage at which a video lesson completes itself.
// Zero disables auto-completion.
type Threshold int

func ParseThreshold(v int) (Threshold, error) {
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("video auto-complete threshold must be between 0 and 100, got %d", v)
	}
	return Threshold(v), nil
}

func (t Threshold) Enabled() bool { return t > 0 }

func (t Threshold) Reached(watched float64) bool {
	return t.Enabled() && watched >= float64(t)
}

// ClampWatched bounds a reported watch percentage to [0, 100].
func ClampWatched(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
