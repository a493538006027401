// Package client contains the client-side building blocks that talk to the
// outside world.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract for the remote store (see RemoteStore):
//     Upsert, ListChangedSince, Ping and Export.
//  2. A gRPC implementation (see GRPCClient) that manages a connection,
//     injects the access token via an interceptor and maps gRPC status codes
//     to sentinel errors.
//  3. An in-process implementation (see MemoryRemote) with the same
//     last-writer-wins rules as the server, used by tests and offline demos.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring a
//     SQLite database and applying the embedded goose migrations.
//
// # Error Handling
//
// Transport conditions are exposed as sentinel errors that callers match
// with errors.Is: ErrUnavailable and ErrUnauthorized both wrap
// common.ErrTransport; a rejected stale push is common.ErrVersionConflict.
//
// Concurrency & Contexts
//
// Implementations are safe for concurrent use. All operations accept a
// context.Context and honour cancellation.
package client
