package kvstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLite stores documents in a single kv_document table.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	o := buildOptions(opts)
	return &SQLite{db: db, now: o.now}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

func (s *SQLite) Read(ctx context.Context, category, key string) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM kv_document WHERE category = ? AND key = ?`,
		category, key).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", category, key, err)
	}
	return json.RawMessage(doc), nil
}

func (s *SQLite) Write(ctx context.Context, category, key string, doc json.RawMessage) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	at := s.now()
	stored, err := stamp(doc, at)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_document (category, key, doc, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (category, key) DO UPDATE SET
			doc          = excluded.doc,
			last_updated = excluded.last_updated
	`, category, key, string(stored), FormatTime(at))
	if err != nil {
		return nil, fmt.Errorf("write %s/%s: %w", category, key, err)
	}
	return stored, nil
}

func (s *SQLite) List(ctx context.Context, category string) ([]string, error) {
	if err := checkName(category, "", false); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv_document WHERE category = ?`, category)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, category, key string) error {
	if err := checkName(category, key, true); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_document WHERE category = ? AND key = ?`, category, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", category, key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
