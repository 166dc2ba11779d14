package migrations

import "embed"

// FS contains the embedded SQLite match store migrations.
//
//go:embed *.sql
var FS embed.FS
