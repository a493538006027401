// Package scheduler closes days whose submission deadline has passed.
//
// A (user, day) moves Open -> Closing -> Closed when its draft is submitted
// at the cutoff instant. A transition that fails lands in Failed and stays
// there until ResetFailed is called; nothing retries it in the background.
//
// The scheduler never creates drafts. A day the user never opened simply has
// no entry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/clock"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/notify"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"golang.org/x/sync/singleflight"
)

type State string

const (
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateClosed  State = "closed"
	StateFailed  State = "failed"
)

// EntryStore is the part of the entry store the scheduler drives.
type EntryStore interface {
	LatestDrafts(ctx context.Context, userID string) ([]models.JournalEntry, error)
	MarkSubmitted(ctx context.Context, id string, at time.Time) (*models.JournalEntry, error)
}

type Config struct {
	CutoffHour   int
	CutoffMinute int

	// Interval is the longest Run sleeps between checks.
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{CutoffHour: 23, CutoffMinute: 59, Interval: time.Minute}
}

// Report lists what one Check did.
type Report struct {
	Submitted []models.JournalEntry
	Failed    []timex.Date
}

type Scheduler struct {
	store    EntryStore
	zone     TimezoneSource
	clock    clock.Clock
	notifier notify.Notifier
	logger   logging.Logger
	cfg      Config

	group singleflight.Group

	// states holds only days in Closing or Failed; the rest follow from
	// the clock.
	mu     sync.Mutex
	states map[string]State
}

func New(store EntryStore, zone TimezoneSource, clk clock.Clock, notifier notify.Notifier, logger logging.Logger, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Scheduler{
		store:    store,
		zone:     zone,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		states:   make(map[string]State),
	}
}

func stateKey(userID string, day timex.Date) string {
	return userID + "/" + day.String()
}

// State reports the state of a day. A day that is neither mid-transition
// nor Failed is Open until its cutoff and Closed after it.
func (s *Scheduler) State(userID string, day timex.Date) State {
	s.mu.Lock()
	st, ok := s.states[stateKey(userID, day)]
	s.mu.Unlock()
	switch {
	case ok:
		return st
	case s.InProgress(day):
		return StateOpen
	}
	return StateClosed
}

func (s *Scheduler) setState(userID string, day timex.Date, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stateKey(userID, day)
	if st == StateOpen || st == StateClosed {
		delete(s.states, key)
		return
	}
	s.states[key] = st
}

// ResetFailed makes a Failed day eligible again on the next check.
func (s *Scheduler) ResetFailed(userID string, day timex.Date) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stateKey(userID, day)
	if s.states[key] != StateFailed {
		return false
	}
	delete(s.states, key)
	return true
}

// Cutoff is the submission deadline of day in loc.
func (s *Scheduler) Cutoff(day timex.Date, loc *time.Location) time.Time {
	return day.At(s.cfg.CutoffHour, s.cfg.CutoffMinute, loc)
}

// Today is the current calendar day in the zone in effect.
func (s *Scheduler) Today() timex.Date {
	return timex.DateOf(s.clock.Now(), s.zone.Location())
}

// InProgress reports whether day's deadline is still ahead.
func (s *Scheduler) InProgress(day timex.Date) bool {
	return s.clock.Now().Before(s.Cutoff(day, s.zone.Location()))
}

// Check submits every draft of userID whose cutoff has passed. Concurrent
// calls for the same user share one evaluation.
func (s *Scheduler) Check(ctx context.Context, userID string) (Report, error) {
	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.check(ctx, userID)
	})
	rep, _ := v.(Report)
	return rep, err
}

func (s *Scheduler) check(ctx context.Context, userID string) (Report, error) {
	var rep Report

	drafts, err := s.store.LatestDrafts(ctx, userID)
	if err != nil {
		return rep, fmt.Errorf("load drafts: %w", err)
	}

	loc := s.zone.Location()
	now := s.clock.Now()

	var errs []error
	for _, d := range drafts {
		if s.State(userID, d.Day) == StateFailed {
			continue
		}
		cutoff := s.Cutoff(d.Day, loc)
		if cutoff.After(now) {
			s.setState(userID, d.Day, StateOpen)
			continue
		}

		s.setState(userID, d.Day, StateClosing)
		e, err := s.store.MarkSubmitted(ctx, d.ID, cutoff)
		switch {
		case errors.Is(err, common.ErrInvalidState):
			s.logger.Warn(ctx, "day already submitted elsewhere", "user", userID, "day", d.Day.String(), "error", err)
			s.setState(userID, d.Day, StateClosed)
			continue
		case err != nil:
			s.setState(userID, d.Day, StateFailed)
			s.logger.Error(ctx, "deadline transition failed", "user", userID, "day", d.Day.String(), "error", err)
			rep.Failed = append(rep.Failed, d.Day)
			errs = append(errs, fmt.Errorf("%w: %s: %w", common.ErrSchedulerFailed, d.Day, err))
			continue
		}

		s.setState(userID, d.Day, StateClosed)
		rep.Submitted = append(rep.Submitted, *e)
		s.logger.Info(ctx, "draft submitted at deadline", "user", userID, "day", d.Day.String(), "cutoff", cutoff)
		s.emitMissed(ctx, userID, d.Day, cutoff)
	}

	return rep, errors.Join(errs...)
}

func (s *Scheduler) emitMissed(ctx context.Context, userID string, day timex.Date, cutoff time.Time) {
	ev := models.Event{
		Kind:    models.EventDeadlineMissed,
		UserID:  userID,
		Day:     day,
		At:      cutoff,
		Message: fmt.Sprintf("entry for %s was submitted automatically at the deadline", day),
	}
	if err := s.notifier.Deliver(ctx, ev, userID); err != nil {
		s.logger.Warn(ctx, "notification failed", "kind", string(ev.Kind), "error", err)
	}
}

// NextWake returns how long to sleep: the configured interval or the time
// until the next cutoff, whichever is shorter.
func (s *Scheduler) NextWake() time.Duration {
	loc := s.zone.Location()
	now := s.clock.Now()

	today := timex.DateOf(now, loc)
	next := s.Cutoff(today, loc)
	if !next.After(now) {
		next = s.Cutoff(today.AddDays(1), loc)
	}
	// land just past the cutoff so the check sees it as passed
	wait := next.Sub(now) + time.Second
	if wait > s.cfg.Interval {
		wait = s.cfg.Interval
	}
	return wait
}

// after is a seam for tests.
var after = time.After

// Run checks userID at start and then at every wake until ctx ends.
func (s *Scheduler) Run(ctx context.Context, userID string) {
	for {
		if _, err := s.Check(ctx, userID); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, "deadline check failed", "user", userID, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-after(s.NextWake()):
		}
	}
}
