// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

// FS holds the *.up.sql files
//
//go:embed *.sql
var FS embed.FS
