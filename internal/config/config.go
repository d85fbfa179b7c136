// Package config loads server and client settings from defaults, an
// optional config file and SHIFTSYNC_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/erauner12/shiftsync/internal/kvstore"
)

// Record backends for sync.records.
const (
	RecordsMemory = "memory"
	RecordsStore  = "store"
)

// Config holds all configuration for the server and the sync client
type Config struct {
	Env       string          `mapstructure:"env"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Client    ClientConfig    `mapstructure:"client"`
}

// HTTPConfig configures the listener
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures zerolog output. File enables a rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// StorageConfig selects the keyed store backend
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	Dir         string `mapstructure:"dir"`
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int32  `mapstructure:"max_conns"`
	Watch       bool   `mapstructure:"watch"`
}

// SyncConfig configures the sync record store and the advertised poll interval
type SyncConfig struct {
	Records      string        `mapstructure:"records"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// AuthConfig configures optional bearer auth
type AuthConfig struct {
	HS256Secret string `mapstructure:"hs256_secret"`
	Required    bool   `mapstructure:"required"`
	DevMode     bool   `mapstructure:"dev_mode"` // enables X-Debug-Sub header fallback
}

// RateLimitConfig configures the sync write limiter. MaxRequests 0 disables it.
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
	Burst         int `mapstructure:"burst"`
}

// CORSConfig lists browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ClientConfig configures cmd/syncclient
type ClientConfig struct {
	ServerURL string `mapstructure:"server_url"`
	DeviceID  string `mapstructure:"device_id"`
	CachePath string `mapstructure:"cache_path"`
	Token     string `mapstructure:"token"`
	DebugSub  string `mapstructure:"debug_sub"`
}

// IsDev reports whether the process runs in the dev environment.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// StoreConfig maps the storage section onto kvstore.Config.
func (c *Config) StoreConfig() kvstore.Config {
	return kvstore.Config{
		Driver:      kvstore.Driver(c.Storage.Driver),
		Dir:         c.Storage.Dir,
		Path:        c.Storage.Path,
		DatabaseURL: c.Storage.DatabaseURL,
		MaxConns:    c.Storage.MaxConns,
	}
}

// Validate checks the server settings
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	switch kvstore.Driver(c.Storage.Driver) {
	case kvstore.DriverMemory, kvstore.DriverBolt, kvstore.DriverSQLite:
	case kvstore.DriverFile:
		if c.Storage.Dir == "" {
			return ErrMissingStorageDir
		}
	case kvstore.DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidStorageDriver, c.Storage.Driver)
	}
	if c.Storage.Watch && kvstore.Driver(c.Storage.Driver) != kvstore.DriverFile {
		return ErrWatchRequiresFileDriver
	}

	if c.Sync.Records != RecordsMemory && c.Sync.Records != RecordsStore {
		return fmt.Errorf("%w: got %q", ErrInvalidRecordBackend, c.Sync.Records)
	}
	if c.Sync.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.Auth.Required && c.Auth.HS256Secret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// ValidateClient checks the settings cmd/syncclient needs
func (c *Config) ValidateClient() error {
	if c.Client.ServerURL == "" {
		return ErrMissingServerURL
	}
	if c.Sync.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return nil
}
