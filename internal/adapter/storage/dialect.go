package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
)

//go:embed schema/*.sql
var schemaFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

// dialect captures what differs between the supported databases.
type dialect struct {
	driver  string
	builder goqu.DialectWrapper
	// lockRows adds FOR UPDATE to locking reads. SQLite has no row locks;
	// its store runs every transaction on a single connection instead.
	lockRows bool
	// returningID fetches generated ids with RETURNING instead of LastInsertId.
	returningID bool
	txOptions   *sql.TxOptions
	schemaFile  string
}

func dialectFor(driver string) (dialect, error) {
	readCommitted := &sql.TxOptions{Isolation: sql.LevelReadCommitted}

	switch driver {
	case DriverSQLite:
		return dialect{
			driver:     driver,
			builder:    goqu.Dialect("sqlite3"),
			schemaFile: "schema/sqlite.sql",
		}, nil
	case DriverMySQL:
		return dialect{
			driver:     driver,
			builder:    goqu.Dialect("mysql"),
			lockRows:   true,
			txOptions:  readCommitted,
			schemaFile: "schema/mysql.sql",
		}, nil
	case DriverPostgres, DriverPGX:
		return dialect{
			driver:      driver,
			builder:     goqu.Dialect("postgres"),
			lockRows:    true,
			returningID: true,
			txOptions:   readCommitted,
			schemaFile:  "schema/postgres.sql",
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// statements splits the dialect's schema file into executable statements.
func (d dialect) statements() ([]string, error) {
	raw, err := schemaFS.ReadFile(d.schemaFile)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var out []string
	for _, stmt := range strings.Split(string(raw), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out, nil
}
