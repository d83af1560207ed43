// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	// SQLite driver registration
	_ "github.com/mattn/go-sqlite3"
)

// dateLayout is how DATE columns are written.
const dateLayout = "2006-01-02"

// ErrAgentNotFound is returned when a contact references a missing agent.
var ErrAgentNotFound = errors.New("tenantdb: agent not found")

// DB is one open tenant database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the SQLite file at path and applies the base schema.
//
// The path comes from replica.Manager.Acquire and is only valid until the
// tenant is next evicted, so callers open per request and Close when done.
func Open(ctx context.Context, path string) (*DB, error) {
	q := url.Values{}
	// The replication tool requires WAL mode.
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_synchronous", "NORMAL")
	dsn := "file:" + path + "?" + q.Encode()

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("tenantdb: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(time.Minute)

	db := &DB{conn: conn, path: path}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tenantdb: begin schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("tenantdb: apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tenantdb: commit schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the database.
func (db *DB) Close() error { return db.conn.Close() }

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error { return db.conn.PingContext(ctx) }
