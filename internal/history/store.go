// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists command usage so the palette can mark recently
// used commands. History only annotates; it never reorders results.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed        = errors.New("history store closed")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS command_usage (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	command_id  TEXT NOT NULL,
	used_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_command ON command_usage(command_id);
CREATE INDEX IF NOT EXISTS idx_usage_time ON command_usage(used_at);
`

// =============================================================================
// USAGE STORE
// =============================================================================

// Store records command usage in a local SQLite database.
type Store struct {
	db        *sql.DB
	retention time.Duration
	closed    bool
}

// Open opens (or creates) the usage database at the given path. retention
// controls how long usage records are kept; Prune enforces it.
func Open(path string, retention time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, retention: retention}, nil
}

// RecordUse records one successful use of the given command.
func (s *Store) RecordUse(ctx context.Context, commandID string) error {
	if s.closed {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO command_usage (command_id, used_at) VALUES (?, ?)",
		commandID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// Recent returns the IDs of the n most recently used distinct commands,
// most recent first.
func (s *Store) Recent(ctx context.Context, n int) ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT command_id
		FROM command_usage
		GROUP BY command_id
		ORDER BY MAX(used_at) DESC, MAX(id) DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UseCount returns how many times the given command has been used.
func (s *Store) UseCount(ctx context.Context, commandID string) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM command_usage WHERE command_id = ?", commandID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return count, nil
}

// Prune deletes usage records older than the retention window.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	cutoff := time.Now().Add(-s.retention).Unix()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM command_usage WHERE used_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return res.RowsAffected()
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
