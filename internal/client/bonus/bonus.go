// Package bonus awards streak milestones. Each threshold is delivered at
// most once per run. A run spans its first to its last qualifying day, so a
// backfilled day that extends the run keeps earlier awards, while breaking a
// streak starts a fresh run with every threshold available again.
package bonus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/daybook/internal/client/clock"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/notify"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/milestones"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

var DefaultThresholds = []int{7, 30, 365}

type Engine struct {
	repo       milestones.Repository
	notifier   notify.Notifier
	clock      clock.Clock
	logger     logging.Logger
	thresholds []int

	mu sync.Mutex
}

func New(repo milestones.Repository, notifier notify.Notifier, clk clock.Clock, logger logging.Logger, thresholds ...int) *Engine {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	ts := append([]int(nil), thresholds...)
	sort.Ints(ts)
	return &Engine{repo: repo, notifier: notifier, clock: clk, logger: logger, thresholds: ts}
}

// Evaluate records every threshold the current run has reached and not yet
// been awarded. When several are new at once they are all recorded and only
// the highest is announced. It returns nil when nothing new was reached.
func (e *Engine) Evaluate(ctx context.Context, userID string, rec models.StreakRecord) (*models.Event, error) {
	if rec.Current <= 0 {
		return nil, nil
	}
	run, last := rec.RunStart(), rec.LastQualifyingDay

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	highest := 0
	for _, th := range e.thresholds {
		if th > rec.Current {
			break
		}
		fresh, err := e.repo.Record(ctx, userID, run, last, th, now)
		if err != nil {
			return nil, fmt.Errorf("record milestone: %w", err)
		}
		if fresh {
			highest = th
		}
	}
	if highest == 0 {
		return nil, nil
	}

	ev := &models.Event{
		Kind:      models.EventMilestoneReached,
		UserID:    userID,
		Day:       rec.LastQualifyingDay,
		Threshold: highest,
		At:        now,
		Message:   fmt.Sprintf("%d day streak", highest),
	}
	e.logger.Info(ctx, "milestone reached", "user", userID, "threshold", highest, "run_start", run.String())
	if err := e.notifier.Deliver(ctx, *ev, userID); err != nil {
		e.logger.Warn(ctx, "notification failed", "kind", string(ev.Kind), "error", err)
	}
	return ev, nil
}
