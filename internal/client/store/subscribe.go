package store

import (
	"sync"

	"github.com/dmitrijs2005/daybook/internal/client/models"
)

// ChangeKind says what happened to an entry.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeSubmitted ChangeKind = "submitted"
	ChangeRemote    ChangeKind = "remote"
	ChangeSync      ChangeKind = "sync"
)

// Change carries an immutable snapshot of the entry after the write.
type Change struct {
	Kind  ChangeKind
	Entry models.JournalEntry
}

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	EntryID string
	UserID  string
}

func (f Filter) match(e *models.JournalEntry) bool {
	if f.EntryID != "" && f.EntryID != e.ID {
		return false
	}
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	return true
}

const subscriberBuffer = 32

type subscriber struct {
	filter Filter
	ch     chan Change
}

type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[int]*subscriber)}
}

func (h *hub) subscribe(f Filter) (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	s := &subscriber{filter: f, ch: make(chan Change, subscriberBuffer)}
	h.subs[id] = s

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// publish never blocks; a subscriber whose buffer is full misses the change.
func (h *hub) publish(kind ChangeKind, e *models.JournalEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if !s.filter.match(e) {
			continue
		}
		select {
		case s.ch <- Change{Kind: kind, Entry: e.Clone()}:
		default:
		}
	}
}
