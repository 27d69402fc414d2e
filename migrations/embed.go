// Package migrations embeds SQL migration files for use at runtime.
// Each backend has its own directory because the DDL dialects differ.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres returns the migrations for the pgx backend.
func Postgres() fs.FS { return sub("postgres") }

// SQLite returns the migrations for the embedded SQLite backend.
func SQLite() fs.FS { return sub("sqlite") }

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		// Only fails for invalid path syntax.
		panic(err)
	}
	return f
}
