package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// schemaFS holds the client credential schema for postgres, with the sqlite
// variant under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var schemaFS embed.FS

// FS returns the embedded migration tree.
func FS() fs.FS {
	return schemaFS
}

// DialectForDriver maps a database/sql driver name to a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// Source is the migration set of one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
	Up      []string
}

// SourceFor resolves the embedded migrations for driver. The set must hold
// at least one up migration, each with a matching down file.
func SourceFor(driver string) (Source, error) {
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return Source{}, err
	}
	path := rootPath
	if dialect == DialectSQLite {
		path = rootPath + "/sqlite"
	}
	sub, err := fs.Sub(schemaFS, path)
	if err != nil {
		return Source{}, fmt.Errorf("migrations: resolve %s: %w", path, err)
	}
	up, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return Source{}, fmt.Errorf("migrations: glob %s: %w", path, err)
	}
	if len(up) == 0 {
		return Source{}, fmt.Errorf("migrations: %s has no *.up.sql files", path)
	}
	sort.Strings(up)
	for _, name := range up {
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(sub, down); err != nil {
			return Source{}, fmt.Errorf("migrations: %s/%s has no rollback: %w", path, name, err)
		}
	}
	return Source{Dialect: dialect, Path: path, FS: sub, Up: up}, nil
}
