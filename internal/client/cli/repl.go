package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Today(ctx context.Context) error
	Write(ctx context.Context) error
	Append(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Streak(ctx context.Context) error
	Sync(ctx context.Context) error
	Retry(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Token(ctx context.Context) error
}

const helpText = `Available commands:
  today                     show today's draft
  write                     replace today's draft (multi-line)
  append <text>             add a line to today's draft
  show [day]                show an entry (today, yesterday or YYYY-MM-DD)
  (l)ist [from] [to]        list entries, last 7 days by default
  history [day]             show the local versions of an entry
  streak                    current and longest streak
  sync                      synchronize with the server now
  retry <day>               re-queue an entry that gave up syncing
  export [from] [to] [file] export entries, optionally download to file
  token                     set the access token
  exit | quit               leave the program`

// runREPL starts a simple read-eval-print loop for the daybook CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on a. Unknown commands are reported back to the
// user. The loop exits on EOF, on context cancellation, or when the user
// types "exit" or "quit".
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("daybook %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "today":
			_ = a.Today(ctx)

		case "write":
			_ = a.Write(ctx)

		case "append":
			_ = a.Append(ctx, args)

		case "show":
			_ = a.Show(ctx, args)

		case "l", "list":
			_ = a.List(ctx, args)

		case "history":
			_ = a.History(ctx, args)

		case "streak":
			_ = a.Streak(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "retry":
			_ = a.Retry(ctx, args)

		case "export":
			_ = a.Export(ctx, args)

		case "token":
			_ = a.Token(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
