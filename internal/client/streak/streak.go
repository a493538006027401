// Package streak derives consecutive-day streaks from the days that carry a
// submitted entry.
package streak

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// Compute returns the streak record for the qualifying days as of asOf.
//
// days may be unsorted and contain duplicates. When asOf does not qualify
// and asOfInProgress is set (today, before its deadline), the walk starts
// from the day before so an unfinished today never breaks a streak.
func Compute(days []timex.Date, asOf timex.Date, asOfInProgress bool) models.StreakRecord {
	set := make(map[timex.Date]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}

	var rec models.StreakRecord
	rec.Longest = Longest(days)

	d := asOf
	if _, ok := set[d]; !ok {
		if !asOfInProgress {
			rec.LastQualifyingDay = latestOnOrBefore(days, asOf)
			return rec
		}
		d = d.AddDays(-1)
	}
	for {
		if _, ok := set[d]; !ok {
			break
		}
		if rec.Current == 0 {
			rec.LastQualifyingDay = d
		}
		rec.Current++
		d = d.AddDays(-1)
	}
	if rec.Current == 0 {
		rec.LastQualifyingDay = latestOnOrBefore(days, asOf)
	}
	return rec
}

// Longest is the longest run of consecutive days, found with a single
// forward scan over the sorted, de-duplicated days.
func Longest(days []timex.Date) int {
	if len(days) == 0 {
		return 0
	}
	sorted := make([]timex.Date, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		switch sorted[i].DaysSince(sorted[i-1]) {
		case 0:
			continue
		case 1:
			run++
		default:
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func latestOnOrBefore(days []timex.Date, asOf timex.Date) timex.Date {
	var out timex.Date
	for _, d := range days {
		if d.After(asOf) {
			continue
		}
		if out.IsZero() || d.After(out) {
			out = d
		}
	}
	return out
}

// DayLister supplies the days on which userID has a submitted entry.
type DayLister interface {
	SubmittedDays(ctx context.Context, userID string) ([]timex.Date, error)
}

// DayWindow reports whether day is still open for submission.
type DayWindow interface {
	InProgress(day timex.Date) bool
}

// Calculator reads qualifying days from the store on demand.
type Calculator struct {
	days   DayLister
	window DayWindow
}

func NewCalculator(days DayLister, window DayWindow) *Calculator {
	return &Calculator{days: days, window: window}
}

func (c *Calculator) Record(ctx context.Context, userID string, asOf timex.Date) (models.StreakRecord, error) {
	days, err := c.days.SubmittedDays(ctx, userID)
	if err != nil {
		return models.StreakRecord{}, fmt.Errorf("load submitted days: %w", err)
	}
	inProgress := c.window != nil && c.window.InProgress(asOf)
	return Compute(days, asOf, inProgress), nil
}

func (c *Calculator) CurrentStreak(ctx context.Context, userID string, asOf timex.Date) (int, error) {
	rec, err := c.Record(ctx, userID, asOf)
	if err != nil {
		return 0, err
	}
	return rec.Current, nil
}
