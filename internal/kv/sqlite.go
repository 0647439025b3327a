package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a single-file SQLite database in the state directory.
type SQLite struct {
	db    *sql.DB
	quota int64
}

// OpenSQLite opens (or creates) the state database at dir/state.db.
func OpenSQLite(dir string, quota int64) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	// Immediate transactions take the write lock up front, so a read-modify-write
	// in Update cannot interleave with another process's.
	dsn := filepath.Join(dir, "state.db") + "?_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	// One writer keeps the quota check and the write in the same critical section.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}

	return &SQLite{db: db, quota: quota}, nil
}

func (s *SQLite) Get(key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) Set(key string, value []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.put(tx, key, value); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Update(key string, fn UpdateFunc) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var old []byte
	err = tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		old = nil
	} else if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	} else if old == nil {
		old = []byte{}
	}

	next, err := fn(old)
	if err != nil {
		return err
	}
	if next == nil {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	} else if err := s.put(tx, key, next); err != nil {
		return err
	}
	return tx.Commit()
}

// put writes one value inside tx after checking the quota.
func (s *SQLite) put(tx *sql.Tx, key string, value []byte) error {
	var used, old int64
	if err := tx.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv`).Scan(&used); err != nil {
		return fmt.Errorf("measuring usage: %w", err)
	}
	if err := tx.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv WHERE key = ?`, key).Scan(&old); err != nil {
		return fmt.Errorf("measuring %s: %w", key, err)
	}
	if !fits(s.quota, used, old, int64(len(value))) {
		return ErrQuotaExceeded
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, value,
	); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// Close closes the state database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
