package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	SQL          *sql.DB
	QueryTimeout time.Duration
}

// DSN turns a configured location ("uptime.db", "sqlite://data/uptime.db",
// "file:uptime.db") into a modernc DSN. Write transactions start with
// BEGIN IMMEDIATE so a read-then-write append cannot be interleaved.
func DSN(location string) string {
	path := strings.TrimPrefix(location, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func New(ctx context.Context, location string, queryTimeout time.Duration) (*DB, error) {
	db, err := sql.Open("sqlite", DSN(location))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", location, err)
	}
	// One connection: SQLite allows a single writer and a held tx would
	// otherwise deadlock against a second pooled connection.
	db.SetMaxOpenConns(1)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(hctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", location, err)
	}
	return &DB{SQL: db, QueryTimeout: queryTimeout}, nil
}

func (db *DB) Close() error { return db.SQL.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.SQL.PingContext(ctx) }

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}
