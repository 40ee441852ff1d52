package db

import "embed"

// EmbedMigrations holds the goose migrations for the metadata store,
// compiled into the binary so deployments need no migrations directory
// on disk.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
