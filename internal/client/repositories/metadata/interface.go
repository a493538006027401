// Package metadata stores small key/value facts about the local database,
// such as the pull cursor per user.
package metadata

import (
	"context"
)

// Repository is a byte-valued key/value table. Absent keys read as nil.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// GetInt64 reports ok=false when the key is absent.
	GetInt64(ctx context.Context, key string) (v int64, ok bool, err error)
	SetInt64(ctx context.Context, key string, v int64) error
}

// CursorKey is the key holding the highest remote revision pulled for userID.
func CursorKey(userID string) string {
	return "sync.cursor." + userID
}
