package db

import "embed"

// EmbedMigrations contains the embedded SQL migrations for the host state store.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
