package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const filePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open opens the sqlite database at path and makes sure the schema exists.
// Writers share a single connection and file databases wait on locks held
// by other processes instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database file, %s: %w", "file://"+path, err)
	}
	// an in-memory database also lives and dies with its connection
	conn.SetMaxOpenConns(1)

	_, err = conn.ExecContext(ctx, Schema)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return conn, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "_pragma=") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + filePragmas
	}
	return path + "?" + filePragmas
}
