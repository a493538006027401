// Package services holds the sync server's business logic. EntryService
// applies pushed entries under last-write-wins, serves incremental pulls
// and writes journal exports to object storage.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/logging"
	sc "github.com/dmitrijs2005/daybook/internal/server/config"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/google/uuid"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// errUnchanged aborts the upsert transaction when the pushed document is
// identical to the stored one, so no revision is consumed.
var errUnchanged = errors.New("unchanged")

type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     ObjectStore
	config      *sc.Config
	logger      logging.Logger
	now         func() time.Time
}

func NewEntryService(db *sql.DB, repomanager repomanager.RepositoryManager, storage ObjectStore, config *sc.Config, logger logging.Logger) *EntryService {
	return &EntryService{
		db:          db,
		repomanager: repomanager,
		storage:     storage,
		config:      config,
		logger:      logger.With("module", "entry_service"),
		now:         time.Now,
	}
}

func GetExportStorageKey(userID string, d time.Time) string {
	return fmt.Sprintf("exports/%s/%d/%d/%d/%v.json", userID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func toModel(e syncpb.Entry) *models.Entry {
	return &models.Entry{
		ID:          e.ID,
		UserID:      e.UserID,
		Day:         e.Day,
		Content:     e.Content,
		CreatedAt:   timex.Instant(e.CreatedAt),
		SubmittedAt: timex.Instant(e.SubmittedAt),
		UpdatedAt:   timex.Instant(e.UpdatedAt),
		SyncVersion: e.SyncVersion,
		Revision:    e.Revision,
	}
}

func toWire(m *models.Entry) syncpb.Entry {
	return syncpb.Entry{
		ID:          m.ID,
		UserID:      m.UserID,
		Day:         m.Day,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		SubmittedAt: m.SubmittedAt,
		UpdatedAt:   m.UpdatedAt,
		SyncVersion: m.SyncVersion,
		Revision:    m.Revision,
	}
}

// Upsert stores in on behalf of userID. A document older than the stored
// one is rejected with common.ErrVersionConflict; an identical one is
// acknowledged with its existing revision. The returned document carries
// the instants as the database keeps them.
func (s *EntryService) Upsert(ctx context.Context, userID string, in syncpb.Entry) (syncpb.Entry, error) {
	if err := in.Validate(); err != nil {
		return syncpb.Entry{}, err
	}
	if in.UserID != userID {
		return syncpb.Entry{}, fmt.Errorf("%w: entry belongs to another user", common.ErrUnauthorized)
	}

	var stored *models.Entry

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// taking the cursor first locks the user's row, so concurrent pushes
		// for the same id cannot both take the insert path
		rev, err := s.repomanager.Cursors(tx).IncrementCurrentRevision(ctx, userID)
		if err != nil {
			return err
		}

		repo := s.repomanager.Entries(tx)

		cur, err := repo.GetForUpdate(ctx, in.ID)
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return err
		default:
			if cur.UserID != userID {
				return fmt.Errorf("%w: entry belongs to another user", common.ErrUnauthorized)
			}
			switch syncpb.Compare(in, toWire(cur)) {
			case -1:
				return fmt.Errorf("%w: stored document is newer", common.ErrVersionConflict)
			case 0:
				stored = cur
				return errUnchanged
			}
		}

		e := toModel(in)
		e.Revision = rev
		if err := repo.CreateOrUpdate(ctx, e); err != nil {
			return err
		}
		stored = e
		return nil
	})

	if errors.Is(err, errUnchanged) {
		return toWire(stored), nil
	}
	if err != nil {
		return syncpb.Entry{}, err
	}

	s.logger.Debug(ctx, "entry stored", "id", stored.ID, "day", stored.Day.String(), "revision", stored.Revision)
	return toWire(stored), nil
}

// ListChangedSince returns userID's entries whose revision is above since,
// in revision order, and the cursor to resume from.
func (s *EntryService) ListChangedSince(ctx context.Context, userID string, since int64, limit int) ([]syncpb.Entry, int64, error) {
	if since < 0 {
		return nil, 0, fmt.Errorf("%w: negative cursor", common.ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.repomanager.Entries(s.db).SelectUpdated(ctx, userID, since, limit)
	if err != nil {
		return nil, 0, err
	}

	cursor := since
	out := make([]syncpb.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toWire(r))
		cursor = r.Revision
	}
	return out, cursor, nil
}

type exportEntry struct {
	Day         string    `json:"day"`
	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type exportDocument struct {
	UserID     string        `json:"user_id"`
	From       string        `json:"from,omitempty"`
	To         string        `json:"to,omitempty"`
	ExportedAt time.Time     `json:"exported_at"`
	Entries    []exportEntry `json:"entries"`
}

// Export uploads userID's entries between from and to (zero dates leave a
// side open) as a JSON document and returns a presigned link to it.
func (s *EntryService) Export(ctx context.Context, userID string, from, to timex.Date) (syncpb.ExportResult, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return syncpb.ExportResult{}, fmt.Errorf("%w: range %s..%s is reversed", common.ErrValidation, from, to)
	}

	rows, err := s.repomanager.Entries(s.db).SelectRange(ctx, userID, from, to)
	if err != nil {
		return syncpb.ExportResult{}, err
	}

	now := s.now().UTC()
	doc := exportDocument{UserID: userID, ExportedAt: now, Entries: make([]exportEntry, 0, len(rows))}
	if !from.IsZero() {
		doc.From = from.String()
	}
	if !to.IsZero() {
		doc.To = to.String()
	}
	for _, r := range rows {
		doc.Entries = append(doc.Entries, exportEntry{
			Day:         r.Day.String(),
			Content:     r.Content,
			SubmittedAt: r.SubmittedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return syncpb.ExportResult{}, fmt.Errorf("marshal export: %w", err)
	}

	key := GetExportStorageKey(userID, now)
	if err := s.storage.Put(ctx, key, body, "application/json"); err != nil {
		return syncpb.ExportResult{}, fmt.Errorf("%w: upload export: %w", common.ErrTransport, err)
	}

	url, err := s.storage.PresignGet(ctx, key, s.config.ExportLinkTTL)
	if err != nil {
		return syncpb.ExportResult{}, fmt.Errorf("%w: presign export: %w", common.ErrTransport, err)
	}

	rec := &models.Export{
		ID:         uuid.NewString(),
		UserID:     userID,
		StorageKey: key,
		From:       from,
		To:         to,
		Entries:    len(rows),
	}
	if err := s.repomanager.Exports(s.db).Create(ctx, rec); err != nil {
		return syncpb.ExportResult{}, err
	}

	s.logger.Info(ctx, "journal exported", "user", userID, "key", key, "entries", len(rows))

	return syncpb.ExportResult{
		Key:       key,
		URL:       url,
		ExpiresAt: now.Add(s.config.ExportLinkTTL),
		Entries:   len(rows),
	}, nil
}
