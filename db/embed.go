// Package db embeds the PostgreSQL schema for the session store.
package db

import (
	"embed"
	"io/fs"
)

// MigrationsFS contains all SQL migration files embedded at compile time.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// Migrations returns the migration files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(MigrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
