// Package store is the local-first entry store. It owns the lifecycle rules
// of a journal entry (lazy draft creation, submission, append-only history
// for submitted content) and serialises writes per entry.
//
// Every write runs inside a single SQLite transaction while holding the
// entry's keyed lock, so readers observe either the previous row or the new
// one. No network I/O happens under the lock.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/daybook/internal/client/clock"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/entries"
	"github.com/dmitrijs2005/daybook/internal/client/tags"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// ResolveFunc decides which side of a conflict survives.
type ResolveFunc func(local, remote models.JournalEntry) models.Decision

// MergeResult reports what ApplyRemote did.
type MergeResult string

const (
	MergeInserted  MergeResult = "inserted"
	MergeRemoteWon MergeResult = "remote-won"
	MergeLocalWon  MergeResult = "local-won"
	MergeUnchanged MergeResult = "unchanged"
)

// PushFailure describes a failed push attempt.
type PushFailure struct {
	Kind          models.ErrorKind
	Attempts      int
	NextAttemptAt *time.Time
	Manual        bool
}

type Store struct {
	db      *sql.DB
	repo    func(dbx.DBTX) entries.Repository
	clock   clock.Clock
	logger  logging.Logger
	locks   *keyedMutex
	changes *hub
}

func New(db *sql.DB, clk clock.Clock, logger logging.Logger) *Store {
	return &Store{
		db:      db,
		repo:    func(tx dbx.DBTX) entries.Repository { return entries.NewSQLiteRepository(tx) },
		clock:   clk,
		logger:  logger,
		locks:   newKeyedMutex(),
		changes: newHub(),
	}
}

// Subscribe streams changes matching f. The returned func ends the
// subscription and closes the channel.
func (s *Store) Subscribe(f Filter) (<-chan Change, func()) {
	return s.changes.subscribe(f)
}

// write runs fn in a transaction under the lock of entry id and publishes
// the entry it returns once committed.
func (s *Store) write(ctx context.Context, id string, fn func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error)) (*models.JournalEntry, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		out  *models.JournalEntry
		kind ChangeKind
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		out, kind, err = fn(ctx, s.repo(tx))
		return err
	})
	if err != nil {
		return nil, err
	}
	if out != nil && kind != "" {
		s.changes.publish(kind, out)
	}
	return out, nil
}

// stamp returns a modification time strictly after prev, so a local clock
// that stepped backwards cannot make a newer edit look older. Stamps carry
// timex.Precision so they survive a round trip through the remote intact.
func (s *Store) stamp(prev time.Time) time.Time {
	now := timex.Instant(s.clock.Now())
	if !now.After(prev) {
		now = timex.Instant(prev).Add(timex.Precision)
	}
	return now
}

func (s *Store) Get(ctx context.Context, id string) (*models.JournalEntry, error) {
	return s.repo(s.db).GetByID(ctx, id)
}

// GetForDay returns userID's entry for day in any status.
func (s *Store) GetForDay(ctx context.Context, userID string, day timex.Date) (*models.JournalEntry, error) {
	return s.repo(s.db).GetByDay(ctx, userID, day)
}

// GetDraftForDay returns the open draft for day, or common.ErrNotFound when
// there is none or the day is already submitted.
func (s *Store) GetDraftForDay(ctx context.Context, userID string, day timex.Date) (*models.JournalEntry, error) {
	e, err := s.GetForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if e.IsSubmitted() {
		return nil, common.ErrNotFound
	}
	return e, nil
}

func (s *Store) newDraft(userID string, day timex.Date) *models.JournalEntry {
	now := timex.Instant(s.clock.Now())
	return &models.JournalEntry{
		ID:          models.EntryID(userID, day),
		UserID:      userID,
		Day:         day,
		Status:      models.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
		SyncVersion: 1,
	}
}

// OpenDraft returns the draft for day, creating an empty one if the day has
// no entry yet. A submitted day yields common.ErrInvalidState.
func (s *Store) OpenDraft(ctx context.Context, userID string, day timex.Date) (*models.JournalEntry, error) {
	return s.write(ctx, models.EntryID(userID, day), func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error) {
		e, err := repo.GetByDay(ctx, userID, day)
		switch {
		case err == nil && e.IsSubmitted():
			return nil, "", fmt.Errorf("%w: %s is already submitted", common.ErrInvalidState, day)
		case err == nil:
			return e, "", nil
		case !isNotFound(err):
			return nil, "", err
		}

		e = s.newDraft(userID, day)
		if err := repo.Insert(ctx, e); err != nil {
			return nil, "", err
		}
		return e, ChangeCreated, nil
	})
}

// UpsertDraftContent replaces the content of the draft for day, creating
// the draft if needed.
func (s *Store) UpsertDraftContent(ctx context.Context, userID string, day timex.Date, content string) (*models.JournalEntry, error) {
	if n := utf8.RuneCountInString(content); n > common.MaxContentRunes {
		return nil, fmt.Errorf("%w: content has %d characters, limit is %d", common.ErrValidation, n, common.MaxContentRunes)
	}

	return s.write(ctx, models.EntryID(userID, day), func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error) {
		e, err := repo.GetByDay(ctx, userID, day)
		if err != nil && !isNotFound(err) {
			return nil, "", err
		}

		if e == nil {
			e = s.newDraft(userID, day)
			e.Content = content
			e.Tags = tags.Parse(content)
			if err := repo.Insert(ctx, e); err != nil {
				return nil, "", err
			}
			return e, ChangeCreated, nil
		}

		if e.IsSubmitted() {
			return nil, "", fmt.Errorf("%w: %s is already submitted", common.ErrInvalidState, day)
		}
		e.Content = content
		e.Tags = tags.Parse(content)
		e.UpdatedAt = s.stamp(e.UpdatedAt)
		e.SyncVersion++
		if err := repo.Update(ctx, e); err != nil {
			return nil, "", err
		}
		return e, ChangeUpdated, nil
	})
}

// MarkSubmitted moves a draft to Submitted at the given instant. Repeating
// the call with the same instant is a no-op; a different instant is
// rejected with common.ErrInvalidState.
func (s *Store) MarkSubmitted(ctx context.Context, id string, at time.Time) (*models.JournalEntry, error) {
	at = timex.Instant(at)
	return s.write(ctx, id, func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error) {
		e, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if e.IsSubmitted() {
			if e.SubmittedAt.Equal(at) {
				return e, "", nil
			}
			return nil, "", fmt.Errorf("%w: entry %s was submitted at %s", common.ErrInvalidState, id, e.SubmittedAt.Format(time.RFC3339))
		}

		e.Status = models.StatusSubmitted
		e.SubmittedAt = &at
		e.UpdatedAt = s.stamp(e.UpdatedAt)
		e.SyncVersion++
		e.Sync = models.SyncState{PendingPush: true}
		if err := repo.Update(ctx, e); err != nil {
			return nil, "", err
		}
		if err := repo.Archive(ctx, e, e.UpdatedAt); err != nil {
			return nil, "", err
		}
		return e, ChangeSubmitted, nil
	})
}

func validateRemote(r models.JournalEntry) error {
	switch {
	case r.ID == "" || r.UserID == "" || r.Day.IsZero():
		return fmt.Errorf("%w: remote entry is missing its identity", common.ErrValidation)
	case r.ID != models.EntryID(r.UserID, r.Day):
		return fmt.Errorf("%w: remote entry %s does not match %s/%s", common.ErrValidation, r.ID, r.UserID, r.Day)
	case !r.IsSubmitted() || r.SubmittedAt == nil || r.SubmittedAt.IsZero():
		return fmt.Errorf("%w: remote entry %s is not submitted", common.ErrValidation, r.ID)
	case r.UpdatedAt.IsZero():
		return fmt.Errorf("%w: remote entry %s has no modification time", common.ErrValidation, r.ID)
	case utf8.RuneCountInString(r.Content) > common.MaxContentRunes:
		return fmt.Errorf("%w: remote entry %s is too long", common.ErrValidation, r.ID)
	}
	return nil
}

func sameDocument(a, b *models.JournalEntry) bool {
	return a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.SyncVersion == b.SyncVersion &&
		a.Content == b.Content &&
		a.Status == b.Status
}

// ApplyRemote merges a pulled entry into local state. resolve is consulted
// only when a local copy exists; the winner replaces the loser whole.
func (s *Store) ApplyRemote(ctx context.Context, remote models.JournalEntry, resolve ResolveFunc) (MergeResult, error) {
	if err := validateRemote(remote); err != nil {
		return "", err
	}

	var result MergeResult
	_, err := s.write(ctx, remote.ID, func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error) {
		incoming := remote.Clone()
		incoming.Tags = tags.Parse(incoming.Content)
		incoming.Sync = models.SyncState{}

		local, err := repo.GetByID(ctx, remote.ID)
		if isNotFound(err) {
			if err := repo.Insert(ctx, &incoming); err != nil {
				return nil, "", err
			}
			if err := repo.Archive(ctx, &incoming, s.clock.Now()); err != nil {
				return nil, "", err
			}
			result = MergeInserted
			return &incoming, ChangeRemote, nil
		}
		if err != nil {
			return nil, "", err
		}

		if sameDocument(local, &incoming) {
			result = MergeUnchanged
			if laterRevision(incoming.RemoteRevision, local.RemoteRevision) {
				local.RemoteRevision = incoming.RemoteRevision
				if err := repo.Update(ctx, local); err != nil {
					return nil, "", err
				}
			}
			return local, "", nil
		}

		if resolve(*local, incoming) == models.KeepLocal {
			result = MergeLocalWon
			if local.IsSubmitted() && !local.Sync.PendingPush && !local.Sync.NeedsManualSync {
				local.Sync.PendingPush = true
				local.Sync.NextAttemptAt = nil
				if err := repo.UpdateSync(ctx, local.ID, local.Sync); err != nil {
					return nil, "", err
				}
				return local, ChangeSync, nil
			}
			return local, "", nil
		}

		if err := repo.Archive(ctx, local, s.clock.Now()); err != nil {
			return nil, "", err
		}
		if err := repo.Update(ctx, &incoming); err != nil {
			return nil, "", err
		}
		if err := repo.Archive(ctx, &incoming, s.clock.Now()); err != nil {
			return nil, "", err
		}
		result = MergeRemoteWon
		return &incoming, ChangeRemote, nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug(ctx, "remote entry applied", "id", remote.ID, "day", remote.Day.String(), "result", string(result))
	return result, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

func laterRevision(a, b *int64) bool {
	return a != nil && (b == nil || *a > *b)
}

// inFlightMatches reports whether cur is still the version that was pushed.
func inFlightMatches(cur, pushed *models.JournalEntry) bool {
	return cur.SyncVersion == pushed.SyncVersion && cur.UpdatedAt.Equal(pushed.UpdatedAt)
}

// RecordPushSuccess clears the pending flag if the entry still matches the
// pushed snapshot. It reports false, changing nothing, when the entry moved
// on while the push was in flight.
func (s *Store) RecordPushSuccess(ctx context.Context, pushed models.JournalEntry, revision int64) (bool, error) {
	applied := false
	_, err := s.write(ctx, pushed.ID, func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error) {
		cur, err := repo.GetByID(ctx, pushed.ID)
		if err != nil {
			return nil, "", err
		}
		if !inFlightMatches(cur, &pushed) {
			return nil, "", nil
		}
		now := s.clock.Now().UTC()
		cur.Sync = models.SyncState{LastAttemptAt: &now}
		if laterRevision(&revision, cur.RemoteRevision) {
			cur.RemoteRevision = &revision
		}
		if err := repo.Update(ctx, cur); err != nil {
			return nil, "", err
		}
		applied = true
		return cur, ChangeSync, nil
	})
	return applied, err
}

// RecordPushFailure stores the outcome of a failed attempt under the same
// staleness rule as RecordPushSuccess.
func (s *Store) RecordPushFailure(ctx context.Context, pushed models.JournalEntry, f PushFailure) (bool, error) {
	applied := false
	_, err := s.write(ctx, pushed.ID, func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error) {
		cur, err := repo.GetByID(ctx, pushed.ID)
		if err != nil {
			return nil, "", err
		}
		if !inFlightMatches(cur, &pushed) {
			return nil, "", nil
		}
		now := s.clock.Now().UTC()
		cur.Sync = models.SyncState{
			PendingPush:     true,
			LastAttemptAt:   &now,
			NextAttemptAt:   f.NextAttemptAt,
			AttemptCount:    f.Attempts,
			LastError:       f.Kind,
			NeedsManualSync: f.Manual,
		}
		if err := repo.UpdateSync(ctx, cur.ID, cur.Sync); err != nil {
			return nil, "", err
		}
		applied = true
		return cur, ChangeSync, nil
	})
	return applied, err
}

// ResetManualSync puts an entry that exhausted its retries back in the push
// queue with a fresh budget.
func (s *Store) ResetManualSync(ctx context.Context, id string) (*models.JournalEntry, error) {
	return s.write(ctx, id, func(ctx context.Context, repo entries.Repository) (*models.JournalEntry, ChangeKind, error) {
		e, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if !e.IsSubmitted() {
			return nil, "", fmt.Errorf("%w: entry %s is a draft", common.ErrInvalidState, id)
		}
		e.Sync = models.SyncState{PendingPush: true, LastAttemptAt: e.Sync.LastAttemptAt}
		if err := repo.UpdateSync(ctx, id, e.Sync); err != nil {
			return nil, "", err
		}
		return e, ChangeSync, nil
	})
}

// LatestDrafts returns every unsubmitted entry of userID, oldest day first.
func (s *Store) LatestDrafts(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	return s.repo(s.db).ListDrafts(ctx, userID)
}

func (s *Store) SubmittedDays(ctx context.Context, userID string) ([]timex.Date, error) {
	return s.repo(s.db).SubmittedDays(ctx, userID)
}

func (s *Store) ListPendingPush(ctx context.Context, userID string, now time.Time) ([]models.JournalEntry, error) {
	return s.repo(s.db).ListPendingPush(ctx, userID, now)
}

// History returns the archived versions of an entry, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]models.JournalEntry, error) {
	return s.repo(s.db).History(ctx, id)
}

func (s *Store) List(ctx context.Context, userID string, from, to timex.Date) ([]models.JournalEntry, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range %s..%s is reversed", common.ErrValidation, from, to)
	}
	return s.repo(s.db).ListRange(ctx, userID, from, to)
}
