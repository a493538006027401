package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/config"
	"github.com/dmitrijs2005/daybook/internal/client/scheduler"
	"github.com/dmitrijs2005/daybook/internal/client/services"
	"github.com/dmitrijs2005/daybook/internal/client/syncer"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// remote is the part of the backend client the App drives directly.
type remote interface {
	SetAccessToken(token string)
	Close() error
}

type App struct {
	config  *config.Config
	journal services.JournalService
	sched   *scheduler.Scheduler
	syncer  *syncer.Engine
	remote  remote
	db      *sql.DB
	logger  logging.Logger

	reader *bufio.Reader
	out    io.Writer
}

// mode follows the sync engine, which every remote call and ping updates.
func (a *App) mode() Mode {
	if a.journal.Online() {
		return ModeOnline
	}
	return ModeOffline
}

// Run starts the background loops, blocks in the REPL and releases
// resources when the user leaves.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer a.Close()
	defer cancel()

	user := a.journal.UserID()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); a.sched.Run(ctx, user) }()
	go func() { defer wg.Done(); a.syncer.Run(ctx, user) }()
	go func() { defer wg.Done(); a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval) }()

	a.Root(ctx)
	cancel()
	wg.Wait()
}

func (a *App) Close() {
	if a.remote != nil {
		_ = a.remote.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// pingTimeout bounds a single connectivity check.
var pingTimeout = 3 * time.Second

func (a *App) checkConnectivity(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := a.syncer.Ping(pctx, a.journal.UserID()); err != nil {
		a.logger.Debug(ctx, "remote ping failed", "error", err)
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkConnectivity(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkConnectivity(ctx)
		case <-ctx.Done():
			return
		}
	}
}
