package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry applied by the migrate CLI command and by the
// server on startup when Postgres is configured.
var Migrations = migrate.NewMigrations()
