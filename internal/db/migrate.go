package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema_postgres.sql
var schemaPostgres string

//go:embed schema_sqlite.sql
var schemaSQLite string

// Open connects to the database and applies the schema.  In-memory SQLite
// databases are pinned to a single connection so every query sees the same
// data.
func Open(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	switch driverName {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driverName == DriverSQLite {
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			conn.SetMaxOpenConns(1)
		}
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, conn, driverName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return conn, nil
}

// Migrate applies the schema for driverName.  Every statement is idempotent.
func Migrate(ctx context.Context, conn *sql.DB, driverName string) error {
	schema := schemaSQLite
	if driverName == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := conn.ExecContext(ctx, schema)
	return err
}

// rebind rewrites ? placeholders into $n for Postgres.
func rebind(driverName, query string) string {
	if driverName != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
