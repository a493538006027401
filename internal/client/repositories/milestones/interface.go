// Package milestones records which streak milestones have been delivered so
// each one fires at most once per run, across restarts.
//
// A run is the span of days from its first to its last qualifying day.
// Backfilled days can move the first day earlier or join two runs, so a
// delivery counts for every run whose span covers the day it was keyed on.
package milestones

import (
	"context"
	"time"

	"github.com/dmitrijs2005/daybook/internal/timex"
)

type Repository interface {
	// Record stores threshold for the run spanning [runStart, runEnd] and
	// reports whether it was new. Nothing is written when the threshold was
	// already delivered for a run that started inside the span.
	Record(ctx context.Context, userID string, runStart, runEnd timex.Date, threshold int, at time.Time) (bool, error)

	// Delivered lists thresholds already delivered within the span.
	Delivered(ctx context.Context, userID string, runStart, runEnd timex.Date) ([]int, error)
}
