package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// TimeFormat is the fixed-width timestamp layout persisted in TEXT columns.
// Unlike time.RFC3339Nano it never trims trailing fractional zeros, so the
// lexical ORDER BY on these columns matches chronological order.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use WAL mode for better concurrency. busy_timeout bounds writer waits
	// so a contended transaction fails instead of blocking forever.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// BeginTx starts a new transaction with the given context and options
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, opts)
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Migrate creates the schema if it does not exist
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id      TEXT PRIMARY KEY,
			cash_balance TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lots (
			lot_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      TEXT NOT NULL,
			symbol       TEXT NOT NULL,
			quantity     INTEGER NOT NULL CHECK (quantity > 0),
			unit_cost    TEXT NOT NULL,
			acquired_seq INTEGER NOT NULL,
			acquired_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lots_user_symbol_seq
			ON lots (user_id, symbol, acquired_seq)`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id        TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			side            TEXT NOT NULL,
			quantity        INTEGER NOT NULL,
			price           TEXT NOT NULL,
			realized_pnl    TEXT,
			balance_after   TEXT NOT NULL,
			idempotency_key TEXT,
			executed_at     TEXT NOT NULL,
			UNIQUE (user_id, idempotency_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_executed
			ON trades (user_id, executed_at)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id  TEXT NOT NULL,
			symbol   TEXT NOT NULL,
			name     TEXT NOT NULL,
			added_at TEXT NOT NULL,
			UNIQUE (user_id, symbol)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
