package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/daybook/internal/client/bonus"
	"github.com/dmitrijs2005/daybook/internal/client/client"
	"github.com/dmitrijs2005/daybook/internal/client/clock"
	"github.com/dmitrijs2005/daybook/internal/client/config"
	"github.com/dmitrijs2005/daybook/internal/client/notify"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/milestones"
	"github.com/dmitrijs2005/daybook/internal/client/scheduler"
	"github.com/dmitrijs2005/daybook/internal/client/services"
	"github.com/dmitrijs2005/daybook/internal/client/store"
	"github.com/dmitrijs2005/daybook/internal/client/streak"
	"github.com/dmitrijs2005/daybook/internal/client/syncer"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

// NewApp builds every client component from c. One instance per process.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, c.LogFormat, c.LogLevel).With("user", c.UserID)

	zone, err := scheduler.ZoneFromName(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	notifier, err := notify.New(c.Notifier, os.Stdout, logger)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	remote, err := client.NewGRPCClient(c.ServerEndpointAddr, c.AccessToken, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clk := clock.System{}
	st := store.New(db, clk, logger.With("component", "store"))
	sched := scheduler.New(st, zone, clk, notifier, logger.With("component", "scheduler"), scheduler.Config{
		CutoffHour:   scheduler.DefaultConfig().CutoffHour,
		CutoffMinute: scheduler.DefaultConfig().CutoffMinute,
		Interval:     c.DeadlineCheckInterval,
	})
	eng := syncer.New(st, remote, metadata.NewSQLiteRepository(db), clk, notifier, logger.With("component", "sync"), syncer.Config{
		Interval:    c.OnlineCheckInterval,
		MaxAttempts: c.SyncMaxAttempts,
		MaxBackoff:  c.SyncMaxBackoff,
	})

	journal := services.NewJournalService(services.Deps{
		UserID:    c.UserID,
		Store:     st,
		Scheduler: sched,
		Streaks:   streak.NewCalculator(st, sched),
		Bonus:     bonus.New(milestones.NewSQLiteRepository(db), notifier, clk, logger.With("component", "bonus")),
		Syncer:    eng,
		Remote:    remote,
		Logger:    logger,
	})

	return &App{
		config:  c,
		journal: journal,
		sched:   sched,
		syncer:  eng,
		remote:  remote,
		db:      db,
		logger:  logger,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}
