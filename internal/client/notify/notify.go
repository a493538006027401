// Package notify hands events to whatever the host uses to reach the user.
// Delivery is best effort; callers log failures and carry on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

type Notifier interface {
	Deliver(ctx context.Context, event models.Event, target string) error
}

const (
	KindLog    = "log"
	KindWriter = "writer"
	KindNop    = "nop"
)

// New builds the notifier named by kind. w is used by the writer kind only.
func New(kind string, w io.Writer, logger logging.Logger) (Notifier, error) {
	switch kind {
	case KindLog, "":
		return NewLogNotifier(logger), nil
	case KindWriter:
		return NewWriterNotifier(w), nil
	case KindNop:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", kind)
	}
}

type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Deliver(ctx context.Context, e models.Event, target string) error {
	args := []any{"kind", string(e.Kind), "target", target, "at", e.At}
	if !e.Day.IsZero() {
		args = append(args, "day", e.Day.String())
	}
	if e.Threshold > 0 {
		args = append(args, "threshold", e.Threshold)
	}
	n.logger.Info(ctx, e.Message, args...)
	return nil
}

// WriterNotifier writes one JSON object per event.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

type envelope struct {
	Target string `json:"target"`
	models.Event
}

func (n *WriterNotifier) Deliver(ctx context.Context, e models.Event, target string) error {
	b, err := json.Marshal(envelope{Target: target, Event: e})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	b = append(b, '\n')

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.w.Write(b); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

type Nop struct{}

func (Nop) Deliver(context.Context, models.Event, string) error { return nil }

// Recorder keeps delivered events in memory. Tests use it to assert on
// what reached the user.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *Recorder) Deliver(_ context.Context, e models.Event, _ string) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Of returns recorded events of the given kind.
func (r *Recorder) Of(kind models.EventKind) []models.Event {
	var out []models.Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
