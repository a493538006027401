package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	return fmt.Sprintf("(%s %s)", a.journal.UserID(), a.mode())
}

func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to daybook (type 'help' for commands)")
	_ = a.Today(ctx)
	runREPL(ctx, a, a.getStatus, a.reader)
}
