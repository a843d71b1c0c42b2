// Package migrations embeds the Postgres schema for the record store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
