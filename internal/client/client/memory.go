package client

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// MemoryRemote is an in-process RemoteStore for a single account. It applies
// the same conditional last-writer-wins rule as the server.
type MemoryRemote struct {
	mu       sync.Mutex
	docs     map[string]syncpb.Entry
	revision int64
	offline  bool
	upserts  int
}

func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{docs: make(map[string]syncpb.Entry)}
}

// SetOffline makes every call fail with ErrUnavailable until cleared.
func (m *MemoryRemote) SetOffline(offline bool) {
	m.mu.Lock()
	m.offline = offline
	m.mu.Unlock()
}

// Put stores e unconditionally, as a write from another device would, and
// returns it with its new revision.
func (m *MemoryRemote) Put(e syncpb.Entry) syncpb.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store(e)
}

func (m *MemoryRemote) store(e syncpb.Entry) syncpb.Entry {
	m.revision++
	e.Revision = m.revision
	m.docs[e.ID] = e
	return e
}

// Doc returns the stored document with id.
func (m *MemoryRemote) Doc(id string) (syncpb.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[id]
	return e, ok
}

// Upserts reports how many pushes were accepted.
func (m *MemoryRemote) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func (m *MemoryRemote) Upsert(ctx context.Context, e syncpb.Entry) (syncpb.Entry, error) {
	if err := ctx.Err(); err != nil {
		return syncpb.Entry{}, err
	}
	if err := e.Validate(); err != nil {
		return syncpb.Entry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return syncpb.Entry{}, ErrUnavailable
	}

	if cur, ok := m.docs[e.ID]; ok {
		switch syncpb.Compare(e, cur) {
		case -1:
			return syncpb.Entry{}, fmt.Errorf("%w: stored revision %d is newer", common.ErrVersionConflict, cur.Revision)
		case 0:
			return cur, nil
		}
	}
	m.upserts++
	return m.store(e), nil
}

func (m *MemoryRemote) ListChangedSince(ctx context.Context, since int64, limit int) ([]syncpb.Entry, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, since, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, since, ErrUnavailable
	}

	var out []syncpb.Entry
	for _, e := range m.docs {
		if e.Revision > since {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	cursor := since
	if len(out) > 0 {
		cursor = out[len(out)-1].Revision
	}
	return out, cursor, nil
}

func (m *MemoryRemote) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ErrUnavailable
	}
	return nil
}

func (m *MemoryRemote) Export(ctx context.Context, from, to timex.Date) (syncpb.ExportResult, error) {
	if err := m.Ping(ctx); err != nil {
		return syncpb.ExportResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.docs {
		if (from.IsZero() || !e.Day.Before(from)) && (to.IsZero() || !e.Day.After(to)) {
			n++
		}
	}
	return syncpb.ExportResult{Key: "memory/export.json", Entries: n}, nil
}

func (m *MemoryRemote) Close() error { return nil }
