package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_document (
	category     TEXT        NOT NULL,
	key          TEXT        NOT NULL,
	doc          JSONB       NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (category, key)
)`

// Postgres stores documents as JSONB rows.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres ensures the schema exists. The store takes ownership of pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create kv_document table: %w", err)
	}
	o := buildOptions(opts)
	return &Postgres{pool: pool, now: o.now}, nil
}

func (p *Postgres) Read(ctx context.Context, category, key string) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	var doc []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM kv_document WHERE category = $1 AND key = $2`,
		category, key).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", category, key, err)
	}
	return doc, nil
}

func (p *Postgres) Write(ctx context.Context, category, key string, doc json.RawMessage) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	at := p.now()
	stored, err := stamp(doc, at)
	if err != nil {
		return nil, err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO kv_document (category, key, doc, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category, key) DO UPDATE SET
			doc          = EXCLUDED.doc,
			last_updated = EXCLUDED.last_updated
	`, category, key, string(stored), at.UTC())
	if err != nil {
		return nil, fmt.Errorf("write %s/%s: %w", category, key, err)
	}
	return stored, nil
}

func (p *Postgres) List(ctx context.Context, category string) ([]string, error) {
	if err := checkName(category, "", false); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `SELECT key FROM kv_document WHERE category = $1`, category)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (p *Postgres) Delete(ctx context.Context, category, key string) error {
	if err := checkName(category, key, true); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM kv_document WHERE category = $1 AND key = $2`, category, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", category, key, err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
