// Package migrations embeds the server Postgres schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
