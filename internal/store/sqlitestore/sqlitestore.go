// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sqlitestore is a SQLite-backed store.Backend. Each device key
// maps to one row holding its JSON-encoded sample array.
package sqlitestore

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/cube_tracker/internal/sample"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.Backend on a SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer; the flush loop and segment-end marking are serialized anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("sqlitestore: opened %s", path)
	return &Store{db: db, now: time.Now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	// m.Close would close db as well; the instance is left to the GC.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Read returns the stored array for key, or an empty slice if absent.
func (s *Store) Read(key string) ([]sample.Sample, error) {
	var raw string
	err := s.db.QueryRow(`SELECT samples_json FROM sample_arrays WHERE device_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []sample.Sample{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}

	var out []sample.Sample
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	if out == nil {
		out = []sample.Sample{}
	}
	return out, nil
}

// Write replaces the stored array for key.
func (s *Store) Write(key string, samples []sample.Sample) error {
	if samples == nil {
		samples = []sample.Sample{}
	}
	raw, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	query := `
		INSERT INTO sample_arrays (device_key, samples_json, sample_count, updated_unix_nanos)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_key) DO UPDATE SET
			samples_json = excluded.samples_json,
			sample_count = excluded.sample_count,
			updated_unix_nanos = excluded.updated_unix_nanos
	`
	if _, err := s.db.Exec(query, key, string(raw), len(samples), s.now().UnixNano()); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Keys lists stored device keys in ascending order.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT device_key FROM sample_arrays ORDER BY device_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Count returns the number of samples stored for key without decoding them.
func (s *Store) Count(key string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT sample_count FROM sample_arrays WHERE device_key = ?`, key).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", key, err)
	}
	return n, nil
}

// Delete removes the stored array for key.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM sample_arrays WHERE device_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}
