// Package migrations embeds SQL migrations for the PostgreSQL token store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
