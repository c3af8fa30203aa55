package migrations

import "embed"

// FS holds the SQL migration files applied at startup and by catalogctl.
//
//go:embed *.sql
var FS embed.FS
