// Package migrations embeds the SQL migrations for the portal's local
// SQLite store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
