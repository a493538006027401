package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/client/migrations"
	"github.com/dmitrijs2005/daybook/internal/filex"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

var migrateUp = migrations.Up

func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrateUp(ctx, db)
}

// InitDatabase opens the journal database at path and brings its schema up
// to date.
func InitDatabase(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", migrations.DSN(path))
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}
