// Package migrations embeds the pinforge SQL migrations into the binary.
//
//	db.Migrate(ctx, migrations.FS)
package migrations

import "embed"

// FS holds the YYYYMMDD_HHMMSS_name.{up,down}.sql files at its root.
//
//go:embed *.sql
var FS embed.FS
