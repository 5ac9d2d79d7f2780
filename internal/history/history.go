/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps a small SQLite ledger of processed files so batch
// runs can be audited after the fact.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log/slog"

	"exrwrap/internal/config"
	applog "exrwrap/internal/log"
	"exrwrap/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	FileName = "history.sqlite"

	// schemaVersion tracks the ledger schema. Bump on breaking changes and
	// add a migration in runMigrations.
	schemaVersion = 1
)

// Entry is one processed (or attempted) file.
type Entry struct {
	ID          int64
	File        string
	Status      string // "ok", "failed" or "skipped"
	Message     string
	Parts       int
	Cropped     bool
	Stripped    int
	Renamed     int
	Compression string
	At          time.Time
}

// Ledger wraps the history database.
type Ledger struct {
	db *sql.DB
}

// DefaultPath returns the ledger location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Open opens (or creates) the ledger at path, enables WAL mode, and ensures
// the schema exists.
func Open(path string) (*Ledger, error) {
	l := applog.WithOperation(applog.WithComponent("history"), "open").With(
		slog.String("path", path),
	)
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("ledger ready")
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (g *Ledger) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			file        TEXT NOT NULL,
			status      TEXT NOT NULL,
			message     TEXT NOT NULL DEFAULT '',
			parts       INTEGER NOT NULL DEFAULT 0,
			cropped     INTEGER NOT NULL DEFAULT 0,
			stripped    INTEGER NOT NULL DEFAULT 0,
			renamed     INTEGER NOT NULL DEFAULT 0,
			compression TEXT NOT NULL DEFAULT '',
			at          TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_at ON entries(at);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// Record appends one entry to the ledger.
func (g *Ledger) Record(ctx context.Context, e Entry) error {
	if g == nil || g.db == nil {
		return errors.New("ledger not open")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO entries (file, status, message, parts, cropped, stripped, renamed, compression, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.File, e.Status, e.Message, e.Parts, boolInt(e.Cropped), e.Stripped, e.Renamed, e.Compression,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. limit <= 0 means all.
func (g *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	if g == nil || g.db == nil {
		return nil, errors.New("ledger not open")
	}
	q := `SELECT id, file, status, message, parts, cropped, stripped, renamed, compression, at
	      FROM entries ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := g.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var cropped int
		var at string
		if err := rows.Scan(&e.ID, &e.File, &e.Status, &e.Message, &e.Parts, &cropped, &e.Stripped, &e.Renamed, &e.Compression, &at); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Cropped = cropped != 0
		if t, perr := time.Parse(time.RFC3339, at); perr == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep entries.
func (g *Ledger) Prune(ctx context.Context, keep int) error {
	if g == nil || g.db == nil {
		return errors.New("ledger not open")
	}
	if keep < 0 {
		keep = 0
	}
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id NOT IN (SELECT id FROM entries ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("prune entries: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
