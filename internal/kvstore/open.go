package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/erauner12/shiftsync/internal/db"
)

// Driver names a backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverFile     Driver = "file"
	DriverBolt     Driver = "bolt"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Config selects and locates a backend.
type Config struct {
	Driver      Driver
	Dir         string // file backend root
	Path        string // bolt or sqlite file
	DatabaseURL string // postgres
	MaxConns    int32
}

// Open builds the backend described by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemory(opts...), nil
	case DriverFile:
		return NewFile(cfg.Dir, opts...)
	case DriverBolt:
		return OpenBolt(pathOr(cfg.Path, cfg.Dir, "shiftsync.db"), opts...)
	case DriverSQLite:
		return OpenSQLite(ctx, pathOr(cfg.Path, cfg.Dir, "shiftsync.sqlite"), opts...)
	case DriverPostgres:
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolSize{MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		store, err := NewPostgres(ctx, pool, opts...)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func pathOr(path, dir, name string) string {
	if path != "" {
		return path
	}
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
