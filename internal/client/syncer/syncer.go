// Package syncer reconciles the local entry store with the remote store.
//
// Only submitted entries are pushed. Conflicts are settled by
// last-write-wins on UpdatedAt with SyncVersion as the tie-break (see
// syncpb.Compare), and the winner replaces the loser whole. Each entry is
// pushed independently: a failing entry backs off on its own schedule and
// never holds up others.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/client"
	"github.com/dmitrijs2005/daybook/internal/client/clock"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/notify"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/daybook/internal/client/store"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// LocalStore is the part of the entry store the engine reads and writes.
type LocalStore interface {
	ListPendingPush(ctx context.Context, userID string, now time.Time) ([]models.JournalEntry, error)
	ApplyRemote(ctx context.Context, remote models.JournalEntry, resolve store.ResolveFunc) (store.MergeResult, error)
	RecordPushSuccess(ctx context.Context, pushed models.JournalEntry, revision int64) (bool, error)
	RecordPushFailure(ctx context.Context, pushed models.JournalEntry, f store.PushFailure) (bool, error)
	Subscribe(f store.Filter) (<-chan store.Change, func())
}

// CursorStore persists the pull cursor.
type CursorStore interface {
	GetInt64(ctx context.Context, key string) (int64, bool, error)
	SetInt64(ctx context.Context, key string, v int64) error
}

type Config struct {
	Interval    time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// MaxAttempts is the retry budget after which an entry needs a manual
	// sync.
	MaxAttempts int
	Concurrency int
	PageSize    int
}

func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		BaseBackoff: time.Second,
		MaxBackoff:  5 * time.Minute,
		MaxAttempts: 8,
		Concurrency: 4,
		PageSize:    100,
	}
}

// PushResult is what happened to a single entry in a push.
type PushResult string

const (
	PushOK       PushResult = "pushed"
	PushStale    PushResult = "stale"
	PushConflict PushResult = "conflict"
	PushFailed   PushResult = "failed"
	PushRefused  PushResult = "refused"
)

type PushOutcome struct {
	Results map[string]PushResult
	Err     error
}

// Count returns how many entries ended with r.
func (o PushOutcome) Count(r PushResult) int {
	n := 0
	for _, v := range o.Results {
		if v == r {
			n++
		}
	}
	return n
}

type Report struct {
	Pulled  int
	Applied map[store.MergeResult]int
	Cursor  int64
	Push    PushOutcome
}

type Engine struct {
	store    LocalStore
	remote   client.RemoteStore
	cursors  CursorStore
	clock    clock.Clock
	notifier notify.Notifier
	logger   logging.Logger
	cfg      Config

	flights singleflight.Group

	mu     sync.Mutex
	online bool
}

func New(local LocalStore, remote client.RemoteStore, cursors CursorStore, clk clock.Clock, notifier notify.Notifier, logger logging.Logger, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	return &Engine{
		store:    local,
		remote:   remote,
		cursors:  cursors,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		online:   true,
	}
}

// Reconcile picks the surviving version of an entry. The later UpdatedAt
// wins; equal timestamps go to the higher SyncVersion. A full tie with
// different content goes to the greater content, the same rule the remote
// applies, so both ends keep one copy. Identical copies keep local.
func Reconcile(local, remote models.JournalEntry) models.Decision {
	if syncpb.Compare(toWire(remote), toWire(local)) > 0 {
		return models.TakeRemote
	}
	return models.KeepLocal
}

func (e *Engine) Reconcile(local, remote models.JournalEntry) models.Decision {
	return Reconcile(local, remote)
}

// Online reports the last observed connectivity.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

func (e *Engine) setOnline(ctx context.Context, userID string, online bool) {
	e.mu.Lock()
	changed := e.online != online
	e.online = online
	e.mu.Unlock()
	if !changed {
		return
	}

	ev := models.Event{Kind: models.EventSyncOnline, UserID: userID, At: e.clock.Now().UTC(), Message: "remote store reachable"}
	if !online {
		ev.Kind = models.EventSyncOffline
		ev.Message = "remote store unreachable, working offline"
	}
	e.logger.Info(ctx, "connectivity changed", "online", online)
	if err := e.notifier.Deliver(ctx, ev, userID); err != nil {
		e.logger.Warn(ctx, "notification failed", "kind", string(ev.Kind), "error", err)
	}
}

// Ping checks the remote and records the outcome as the online flag. A
// ping cut short by ctx leaves the flag alone.
func (e *Engine) Ping(ctx context.Context, userID string) error {
	err := e.remote.Ping(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	e.setOnline(ctx, userID, err == nil)
	return err
}

// observe updates the online flag from the outcome of a remote call.
func (e *Engine) observe(ctx context.Context, userID string, err error) {
	switch {
	case err == nil, errors.Is(err, common.ErrVersionConflict), errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrNotFound):
		e.setOnline(ctx, userID, true)
	case errors.Is(err, client.ErrUnavailable):
		e.setOnline(ctx, userID, false)
	}
}

func classify(err error) models.ErrorKind {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return models.ErrorKindUnauthorized
	case errors.Is(err, client.ErrUnavailable):
		return models.ErrorKindUnavailable
	case errors.Is(err, common.ErrVersionConflict):
		return models.ErrorKindConflict
	case errors.Is(err, common.ErrValidation):
		return models.ErrorKindRejected
	}
	return models.ErrorKindUnknown
}

// backoff returns the delay before attempt+1, or stop once the budget is
// spent.
func (e *Engine) backoff(attempt int) (time.Duration, bool) {
	b := retry.WithMaxRetries(uint64(e.cfg.MaxAttempts-1),
		retry.WithCappedDuration(e.cfg.MaxBackoff, retry.NewExponential(e.cfg.BaseBackoff)))
	var (
		d    time.Duration
		stop bool
	)
	for i := 0; i < attempt && !stop; i++ {
		d, stop = b.Next()
	}
	return d, stop
}

// Push sends entries to the remote store. Drafts are refused. A push for an
// entry that is already in flight joins the running attempt.
func (e *Engine) Push(ctx context.Context, entries []models.JournalEntry) PushOutcome {
	out := PushOutcome{Results: make(map[string]PushResult, len(entries))}
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, entry := range entries {
		if !entry.IsSubmitted() {
			mu.Lock()
			out.Results[entry.ID] = PushRefused
			mu.Unlock()
			continue
		}
		entry := entry.Clone()
		g.Go(func() error {
			v, err, _ := e.flights.Do("push/"+entry.ID, func() (any, error) {
				return e.pushOne(gctx, entry)
			})
			res, _ := v.(PushResult)
			mu.Lock()
			out.Results[entry.ID] = res
			if err != nil {
				errs = append(errs, err)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	out.Err = errors.Join(errs...)
	return out
}

func (e *Engine) pushOne(ctx context.Context, entry models.JournalEntry) (PushResult, error) {
	stored, err := e.remote.Upsert(ctx, toWire(entry))
	if ctx.Err() != nil {
		return PushFailed, ctx.Err()
	}
	e.observe(ctx, entry.UserID, err)

	if err == nil {
		applied, rerr := e.store.RecordPushSuccess(ctx, entry, stored.Revision)
		if rerr != nil {
			return PushFailed, fmt.Errorf("record push of %s: %w", entry.ID, rerr)
		}
		if !applied {
			e.logger.Debug(ctx, "push result discarded, entry changed in flight", "id", entry.ID)
			return PushStale, nil
		}
		return PushOK, nil
	}

	if errors.Is(err, common.ErrVersionConflict) {
		// Not a transport failure: the attempt budget is untouched and the
		// following pull settles which copy survives.
		_, rerr := e.store.RecordPushFailure(ctx, entry, store.PushFailure{
			Kind:     models.ErrorKindConflict,
			Attempts: entry.Sync.AttemptCount,
		})
		if rerr != nil {
			return PushFailed, fmt.Errorf("record conflict of %s: %w", entry.ID, rerr)
		}
		return PushConflict, nil
	}

	attempts := entry.Sync.AttemptCount + 1
	f := store.PushFailure{Kind: classify(err), Attempts: attempts}
	delay, stop := e.backoff(attempts)
	if stop || f.Kind == models.ErrorKindRejected {
		f.Manual = true
		e.logger.Warn(ctx, "entry needs manual sync", "id", entry.ID, "attempts", attempts, "error", err)
	} else {
		next := e.clock.Now().UTC().Add(delay)
		f.NextAttemptAt = &next
	}
	if _, rerr := e.store.RecordPushFailure(ctx, entry, f); rerr != nil {
		return PushFailed, errors.Join(err, fmt.Errorf("record failure of %s: %w", entry.ID, rerr))
	}
	return PushFailed, fmt.Errorf("push %s: %w", entry.ID, err)
}

// Pull pages through remote changes after cursor and returns the entries
// that belong to userID together with the new cursor.
func (e *Engine) Pull(ctx context.Context, userID string, cursor int64) ([]models.JournalEntry, int64, error) {
	var out []models.JournalEntry
	for {
		page, next, err := e.remote.ListChangedSince(ctx, cursor, e.cfg.PageSize)
		e.observe(ctx, userID, err)
		if err != nil {
			return out, cursor, fmt.Errorf("pull since %d: %w", cursor, err)
		}
		for _, w := range page {
			if w.UserID != userID {
				e.logger.Warn(ctx, "remote entry for another user skipped", "id", w.ID)
				continue
			}
			out = append(out, fromWire(w))
		}
		if next <= cursor || len(page) < e.cfg.PageSize {
			if next > cursor {
				cursor = next
			}
			return out, cursor, nil
		}
		cursor = next
	}
}

// pullAndApply merges remote changes and persists the cursor. A remote
// entry the store rejects is skipped so it cannot wedge the cursor.
func (e *Engine) pullAndApply(ctx context.Context, userID string, rep *Report) error {
	key := metadata.CursorKey(userID)
	cursor, _, err := e.cursors.GetInt64(ctx, key)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	remote, next, err := e.Pull(ctx, userID, cursor)
	if err != nil {
		return err
	}
	rep.Pulled += len(remote)
	for _, r := range remote {
		res, err := e.store.ApplyRemote(ctx, r, e.Reconcile)
		if errors.Is(err, common.ErrValidation) {
			e.logger.Warn(ctx, "remote entry rejected", "id", r.ID, "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", r.ID, err)
		}
		rep.Applied[res]++
	}

	if next != cursor {
		if err := e.cursors.SetInt64(ctx, key, next); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
	}
	rep.Cursor = next
	return nil
}

// SyncOnce pulls and applies remote changes, then pushes every due entry.
// Concurrent calls for the same user share one run.
func (e *Engine) SyncOnce(ctx context.Context, userID string) (Report, error) {
	v, err, _ := e.flights.Do("sync/"+userID, func() (any, error) {
		return e.syncOnce(ctx, userID)
	})
	rep, _ := v.(Report)
	return rep, err
}

func (e *Engine) syncOnce(ctx context.Context, userID string) (Report, error) {
	rep := Report{Applied: make(map[store.MergeResult]int)}
	var errs []error

	if err := e.pullAndApply(ctx, userID, &rep); err != nil {
		errs = append(errs, err)
	}

	due, err := e.store.ListPendingPush(ctx, userID, e.clock.Now())
	if err != nil {
		errs = append(errs, fmt.Errorf("list pending: %w", err))
		return rep, errors.Join(errs...)
	}
	rep.Push = e.Push(ctx, due)
	if rep.Push.Err != nil {
		errs = append(errs, rep.Push.Err)
	}

	if rep.Push.Count(PushConflict) > 0 {
		if err := e.pullAndApply(ctx, userID, &rep); err != nil {
			errs = append(errs, err)
		}
	}

	if len(rep.Push.Results) > 0 || rep.Pulled > 0 {
		e.logger.Info(ctx, "sync finished",
			"user", userID,
			"pulled", rep.Pulled,
			"pushed", rep.Push.Count(PushOK),
			"failed", rep.Push.Count(PushFailed),
			"cursor", rep.Cursor)
	}
	return rep, errors.Join(errs...)
}

// after is a seam for tests.
var after = time.After

// Run syncs userID at start, every interval, and whenever an entry of the
// user is submitted, until ctx ends.
func (e *Engine) Run(ctx context.Context, userID string) {
	changes, cancel := e.store.Subscribe(store.Filter{UserID: userID})
	defer cancel()

	for {
		if _, err := e.SyncOnce(ctx, userID); err != nil && ctx.Err() == nil {
			e.logger.Warn(ctx, "sync incomplete", "user", userID, "error", err)
		}

		timer := after(e.cfg.Interval)
		for kicked := false; !kicked; {
			select {
			case <-ctx.Done():
				return
			case <-timer:
				kicked = true
			case ch, ok := <-changes:
				if !ok {
					return
				}
				kicked = ch.Kind == store.ChangeSubmitted
			}
		}
	}
}
