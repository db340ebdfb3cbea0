// Package migrations embeds the SQL applied by the migrate and site commands.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed shared/*.sql site/*.sql
var files embed.FS

// Shared returns the migrations for the shared schema.
func Shared() fs.FS {
	sub, _ := fs.Sub(files, "shared")
	return sub
}

// Site returns the migrations applied to every site_<slug> schema.
func Site() fs.FS {
	sub, _ := fs.Sub(files, "site")
	return sub
}
