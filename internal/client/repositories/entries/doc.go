// Package entries provides the client-side persistence layer for journal
// entries.
//
// # Overview
//
// The package defines a Repository interface over the local entries table
// and its entry_versions history. A SQLite-backed implementation
// (SQLiteRepository) persists data using a dbx.DBTX (either *sql.DB or
// *sql.Tx), so callers can compose several calls inside dbx.WithTx.
//
// # Data Model
//
// Each row holds one user's entry for one calendar day; (user_id, day) is
// unique. Timestamps are stored as UTC Unix nanoseconds. Tags are written
// alongside content for inspection but are always recomputed from content
// when a row is read.
//
// Submitted content is never overwritten in place without an Archive call
// first; the history table keeps every replaced version.
//
// # Concurrency
//
// The repository performs no locking of its own. Serialisation of writes to
// one entry is the caller's job (see internal/client/store).
//
// Typical Usage
//
//	repo := entries.NewSQLiteRepository(db)
//	e, err := repo.GetByDay(ctx, userID, day)
//	_ = repo.Update(ctx, e)
//	pending, _ := repo.ListPendingPush(ctx, userID, now)
package entries
