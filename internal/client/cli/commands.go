package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/syncer"
	"github.com/dmitrijs2005/daybook/internal/client/utils"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/filex"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// defaultListDays is how far back "list" looks without arguments.
const defaultListDays = 7

// parseDay accepts "today", "yesterday" or YYYY-MM-DD.
func parseDay(s string, today timex.Date) (timex.Date, error) {
	switch strings.ToLower(s) {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	d, err := timex.ParseDate(s)
	if err != nil {
		return timex.Date{}, fmt.Errorf("%w: bad day %q, want YYYY-MM-DD", common.ErrValidation, s)
	}
	return d, nil
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func formatEntry(e *models.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", e.Day, e.Status)
	if e.SubmittedAt != nil {
		fmt.Fprintf(&b, " submitted %s", e.SubmittedAt.Local().Format(time.DateTime))
	}
	switch {
	case e.Sync.NeedsManualSync:
		b.WriteString(" (sync gave up, use 'retry')")
	case e.Sync.PendingPush:
		b.WriteString(" (not synced)")
	}
	b.WriteString("\n")
	if e.Content == "" {
		b.WriteString("(empty)")
	} else {
		b.WriteString(e.Content)
	}
	if len(e.Tags) > 0 {
		tags := make([]string, 0, len(e.Tags))
		for _, t := range e.Tags {
			if t.Minutes != nil {
				tags = append(tags, fmt.Sprintf("#%s %dm", t.Label, *t.Minutes))
			} else {
				tags = append(tags, "#"+t.Label)
			}
		}
		b.WriteString("\ntags: " + strings.Join(tags, ", "))
	}
	return b.String()
}

func summary(e models.JournalEntry) string {
	first, _, _ := strings.Cut(e.Content, "\n")
	if r := []rune(first); len(r) > 60 {
		first = string(r[:60]) + "..."
	}
	return fmt.Sprintf("%s  %-9s  %s", e.Day, e.Status, first)
}

// report prints err for the user. Not-found is not worth a log line.
func (a *App) report(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		printlnFn("Nothing found")
	case errors.Is(err, common.ErrInvalidState), errors.Is(err, common.ErrValidation):
		printlnFn("Error:", err)
	case errors.Is(err, common.ErrUnauthorized):
		printlnFn("The server refused the access token, set a new one with 'token'")
	case errors.Is(err, common.ErrTransport):
		printlnFn("Server unavailable, changes stay local until the next sync")
	default:
		printlnFn("Error:", err)
		a.logger.Error(ctx, op+" failed", "error", err)
	}
	return err
}

func (a *App) Today(ctx context.Context) error {
	e, err := a.journal.Today(ctx)
	if err != nil {
		return a.report(ctx, "today", err)
	}
	printlnFn(formatEntry(e))
	return nil
}

func (a *App) Write(ctx context.Context) error {
	content, err := GetMultiline(a.reader, "Write today's entry (replaces the current draft)", a.out)
	if err != nil {
		return a.report(ctx, "write", err)
	}
	e, err := a.journal.Write(ctx, content)
	if err != nil {
		return a.report(ctx, "write", err)
	}
	printlnFn("Saved draft for", e.Day.String())
	return nil
}

func (a *App) Append(ctx context.Context, args []string) error {
	line := strings.Join(args, " ")
	if line == "" {
		var err error
		if line, err = GetSimpleText(a.reader, "Line to append", a.out); err != nil {
			return a.report(ctx, "append", err)
		}
	}
	e, err := a.journal.Append(ctx, line)
	if err != nil {
		return a.report(ctx, "append", err)
	}
	printlnFn("Saved draft for", e.Day.String())
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	day, err := parseDay(arg(args, 0), a.journal.CurrentDay())
	if err != nil {
		return a.report(ctx, "show", err)
	}
	e, err := a.journal.Show(ctx, day)
	if err != nil {
		return a.report(ctx, "show", err)
	}
	printlnFn(formatEntry(e))
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	today := a.journal.CurrentDay()
	from, to := today.AddDays(-(defaultListDays - 1)), today
	var err error
	if len(args) > 0 {
		if from, err = parseDay(args[0], today); err != nil {
			return a.report(ctx, "list", err)
		}
	}
	if len(args) > 1 {
		if to, err = parseDay(args[1], today); err != nil {
			return a.report(ctx, "list", err)
		}
	}

	items, err := a.journal.List(ctx, from, to)
	if err != nil {
		return a.report(ctx, "list", err)
	}
	if len(items) == 0 {
		printlnFn("No entries")
		return nil
	}
	for _, e := range items {
		printlnFn(summary(e))
	}
	return nil
}

func (a *App) History(ctx context.Context, args []string) error {
	day, err := parseDay(arg(args, 0), a.journal.CurrentDay())
	if err != nil {
		return a.report(ctx, "history", err)
	}
	versions, err := a.journal.History(ctx, day)
	if err != nil {
		return a.report(ctx, "history", err)
	}
	if len(versions) == 0 {
		printlnFn("No history")
		return nil
	}
	for _, v := range versions {
		printlnFn(fmt.Sprintf("v%d  %s  %s", v.SyncVersion, v.UpdatedAt.Local().Format(time.DateTime), summary(v)))
	}
	return nil
}

func (a *App) Streak(ctx context.Context) error {
	rec, ev, err := a.journal.Streak(ctx)
	if err != nil {
		return a.report(ctx, "streak", err)
	}
	printlnFn(fmt.Sprintf("Current streak: %d day(s), longest: %d", rec.Current, rec.Longest))
	if start := rec.RunStart(); !start.IsZero() {
		printlnFn("Running since", start.String())
	}
	if ev != nil {
		printlnFn(ev.Message)
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	rep, err := a.journal.Sync(ctx)
	if err != nil {
		return a.report(ctx, "sync", err)
	}
	printlnFn(fmt.Sprintf("Pulled %d, pushed %d, failed %d", rep.Pulled, rep.Push.Count(syncer.PushOK), rep.Push.Count(syncer.PushFailed)))
	return nil
}

func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: retry <day>")
		return nil
	}
	day, err := parseDay(args[0], a.journal.CurrentDay())
	if err != nil {
		return a.report(ctx, "retry", err)
	}
	if err := a.journal.RetryManual(ctx, day); err != nil {
		return a.report(ctx, "retry", err)
	}
	printlnFn("Queued", day.String(), "for the next sync")
	return nil
}

func (a *App) Export(ctx context.Context, args []string) error {
	var from, to timex.Date
	var err error
	today := a.journal.CurrentDay()
	if s := arg(args, 0); s != "" {
		if from, err = parseDay(s, today); err != nil {
			return a.report(ctx, "export", err)
		}
	}
	if s := arg(args, 1); s != "" {
		if to, err = parseDay(s, today); err != nil {
			return a.report(ctx, "export", err)
		}
	}

	res, err := a.journal.Export(ctx, from, to)
	if err != nil {
		return a.report(ctx, "export", err)
	}
	printlnFn(fmt.Sprintf("Exported %d entries, link valid until %s", res.Entries, res.ExpiresAt.Local().Format(time.DateTime)))

	path := arg(args, 2)
	if path == "" {
		printlnFn(res.URL)
		return nil
	}

	f, err := filex.CreateFile(path)
	if err != nil {
		return a.report(ctx, "export", err)
	}
	defer f.Close()
	n, err := utils.DownloadPresignedURL(ctx, res.URL, f)
	if err != nil {
		return a.report(ctx, "export", err)
	}
	printlnFn(fmt.Sprintf("Saved %d bytes to %s", n, path))
	return nil
}

func (a *App) Token(ctx context.Context) error {
	tok, err := GetToken(a.out)
	if err != nil {
		return a.report(ctx, "token", err)
	}
	if tok == "" {
		printlnFn("Token unchanged")
		return nil
	}
	a.remote.SetAccessToken(tok)
	printlnFn("Token updated")
	return nil
}
