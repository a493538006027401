package models

import "github.com/dmitrijs2005/daybook/internal/timex"

// StreakRecord is derived from submission history and never stored as the
// source of truth.
type StreakRecord struct {
	Current           int
	Longest           int
	LastQualifyingDay timex.Date
}

// RunStart is the first day of the current run, or the zero Date when
// there is no run.
func (r StreakRecord) RunStart() timex.Date {
	if r.Current == 0 || r.LastQualifyingDay.IsZero() {
		return timex.Date{}
	}
	return r.LastQualifyingDay.AddDays(-(r.Current - 1))
}
