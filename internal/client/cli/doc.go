// Package cli provides the interactive daybook command-line client.
//
// It wires configuration, local storage, the deadline scheduler, the sync
// engine and an interactive REPL. Typical flow: open the local journal,
// start the background deadline and sync loops plus a connectivity watcher,
// then execute user commands.
//
// Key features:
//   - Write or append to today's entry (drafts never leave the device)
//   - Show, list and history of past days
//   - Streak and milestones
//   - Manual sync, retry of entries that exhausted their retries, export
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
