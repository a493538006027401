// Package services contains application services for the daybook client.
// JournalService is what the CLI talks to: it closes overdue days, keeps
// streak milestones current, and fronts the sync engine and remote export.
// Input never waits on the deadline check; Write and Append only consult
// the clock and leave closing to a background check.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/daybook/internal/client/bonus"
	"github.com/dmitrijs2005/daybook/internal/client/client"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/scheduler"
	"github.com/dmitrijs2005/daybook/internal/client/store"
	"github.com/dmitrijs2005/daybook/internal/client/streak"
	"github.com/dmitrijs2005/daybook/internal/client/syncer"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// JournalService defines the journal operations of one signed-in user.
//
// All methods must honor context cancellation/timeouts.
type JournalService interface {
	// Today closes overdue days and returns today's draft, creating it
	// lazily.
	Today(ctx context.Context) (*models.JournalEntry, error)
	Write(ctx context.Context, content string) (*models.JournalEntry, error)
	Append(ctx context.Context, line string) (*models.JournalEntry, error)
	Show(ctx context.Context, day timex.Date) (*models.JournalEntry, error)
	History(ctx context.Context, day timex.Date) ([]models.JournalEntry, error)
	List(ctx context.Context, from, to timex.Date) ([]models.JournalEntry, error)

	// Streak returns the current record and the milestone it just
	// unlocked, if any.
	Streak(ctx context.Context) (models.StreakRecord, *models.Event, error)

	Sync(ctx context.Context) (syncer.Report, error)
	RetryManual(ctx context.Context, day timex.Date) error
	Export(ctx context.Context, from, to timex.Date) (syncpb.ExportResult, error)
	Online() bool
	UserID() string

	// CurrentDay is today in the timezone in effect now.
	CurrentDay() timex.Date
}

type Deps struct {
	UserID    string
	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Streaks   *streak.Calculator
	Bonus     *bonus.Engine
	Syncer    *syncer.Engine
	Remote    client.RemoteStore
	Logger    logging.Logger
}

type journalService struct {
	Deps

	mu      sync.Mutex
	closing chan struct{}
}

func NewJournalService(d Deps) JournalService {
	return &journalService{Deps: d}
}

func (s *journalService) UserID() string { return s.Deps.UserID }

func (s *journalService) CurrentDay() timex.Date { return s.Scheduler.Today() }

// closeOverdue runs the deadline check. A failed transition is logged and
// reported but does not block the user from writing today.
func (s *journalService) closeOverdue(ctx context.Context) {
	rep, err := s.Scheduler.Check(ctx, s.Deps.UserID)
	if err != nil {
		s.Logger.Error(ctx, "deadline check failed", "user", s.Deps.UserID, "failed_days", len(rep.Failed), "error", err)
	}
	if len(rep.Submitted) > 0 {
		if _, _, err := s.Streak(ctx); err != nil {
			s.Logger.Warn(ctx, "milestone evaluation failed", "error", err)
		}
	}
}

// closeOverdueAsync starts a deadline check unless one started here is
// still running. It outlives ctx's cancellation but keeps its values.
func (s *journalService) closeOverdueAsync(ctx context.Context) {
	s.mu.Lock()
	if s.closing != nil {
		s.mu.Unlock()
		return
	}
	done := make(chan struct{})
	s.closing = done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.closing = nil
			s.mu.Unlock()
			close(done)
		}()
		s.closeOverdue(context.WithoutCancel(ctx))
	}()
}

// waitClosing blocks until the background check, if any, has finished.
func (s *journalService) waitClosing(ctx context.Context) {
	s.mu.Lock()
	done := s.closing
	s.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// closeOverdueNow runs a fresh check after any background one, so it sees
// the clock as it is now.
func (s *journalService) closeOverdueNow(ctx context.Context) {
	s.waitClosing(ctx)
	s.closeOverdue(ctx)
}

// today is the day input goes to. It only reads the clock.
func (s *journalService) today() (timex.Date, error) {
	day := s.Scheduler.Today()
	if !s.Scheduler.InProgress(day) {
		return day, fmt.Errorf("%w: the deadline for %s has passed", common.ErrInvalidState, day)
	}
	return day, nil
}

func (s *journalService) Today(ctx context.Context) (*models.JournalEntry, error) {
	s.closeOverdueNow(ctx)
	day, err := s.today()
	if err != nil {
		return nil, err
	}
	return s.Store.OpenDraft(ctx, s.Deps.UserID, day)
}

func (s *journalService) Write(ctx context.Context, content string) (*models.JournalEntry, error) {
	day, err := s.today()
	if err != nil {
		return nil, err
	}
	s.closeOverdueAsync(ctx)
	return s.Store.UpsertDraftContent(ctx, s.Deps.UserID, day, content)
}

func (s *journalService) Append(ctx context.Context, line string) (*models.JournalEntry, error) {
	day, err := s.today()
	if err != nil {
		return nil, err
	}
	s.closeOverdueAsync(ctx)
	cur, err := s.Store.OpenDraft(ctx, s.Deps.UserID, day)
	if err != nil {
		return nil, err
	}
	content := line
	if cur.Content != "" {
		content = strings.TrimRight(cur.Content, "\n") + "\n" + line
	}
	return s.Store.UpsertDraftContent(ctx, s.Deps.UserID, day, content)
}

func (s *journalService) Show(ctx context.Context, day timex.Date) (*models.JournalEntry, error) {
	return s.Store.GetForDay(ctx, s.Deps.UserID, day)
}

func (s *journalService) History(ctx context.Context, day timex.Date) ([]models.JournalEntry, error) {
	return s.Store.History(ctx, models.EntryID(s.Deps.UserID, day))
}

func (s *journalService) List(ctx context.Context, from, to timex.Date) ([]models.JournalEntry, error) {
	return s.Store.List(ctx, s.Deps.UserID, from, to)
}

func (s *journalService) Streak(ctx context.Context) (models.StreakRecord, *models.Event, error) {
	rec, err := s.Streaks.Record(ctx, s.Deps.UserID, s.Scheduler.Today())
	if err != nil {
		return models.StreakRecord{}, nil, fmt.Errorf("streak: %w", err)
	}
	ev, err := s.Bonus.Evaluate(ctx, s.Deps.UserID, rec)
	if err != nil {
		return rec, nil, err
	}
	return rec, ev, nil
}

func (s *journalService) Sync(ctx context.Context) (syncer.Report, error) {
	s.closeOverdueNow(ctx)
	rep, err := s.Syncer.SyncOnce(ctx, s.Deps.UserID)
	if rep.Pulled > 0 {
		if _, _, serr := s.Streak(ctx); serr != nil {
			s.Logger.Warn(ctx, "milestone evaluation failed", "error", serr)
		}
	}
	return rep, err
}

func (s *journalService) RetryManual(ctx context.Context, day timex.Date) error {
	_, err := s.Store.ResetManualSync(ctx, models.EntryID(s.Deps.UserID, day))
	return err
}

func (s *journalService) Export(ctx context.Context, from, to timex.Date) (syncpb.ExportResult, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return syncpb.ExportResult{}, fmt.Errorf("%w: range %s..%s is reversed", common.ErrValidation, from, to)
	}
	return s.Remote.Export(ctx, from, to)
}

func (s *journalService) Online() bool {
	return s.Syncer.Online()
}
