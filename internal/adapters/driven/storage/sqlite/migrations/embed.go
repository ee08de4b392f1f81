// Package migrations embeds the versioned SQL schema for the SQLite store.
// Files are named NNN_description.up.sql / NNN_description.down.sql.
package migrations

import "embed"

// FS holds the migration files.
//
//go:embed *.sql
var FS embed.FS
