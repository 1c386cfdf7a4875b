package migrations

import "embed"

// Migrations holds the embedded SQL migration files, applied in order by the
// session store on startup.
//
//go:embed *.sql
var Migrations embed.FS
