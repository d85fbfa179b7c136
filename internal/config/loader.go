package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SHIFTSYNC_HTTP_ADDR.
const EnvPrefix = "SHIFTSYNC"

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("http.addr", ":8081")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("storage.watch", false)

	v.SetDefault("sync.records", RecordsMemory)
	v.SetDefault("sync.poll_interval", "10s")

	v.SetDefault("auth.hs256_secret", "")
	v.SetDefault("auth.required", false)
	v.SetDefault("auth.dev_mode", false)

	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("ratelimit.max_requests", 600)
	v.SetDefault("ratelimit.burst", 100)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("client.server_url", "http://localhost:8081")
	v.SetDefault("client.device_id", "")
	v.SetDefault("client.cache_path", "shiftsync-client.db")
	v.SetDefault("client.token", "")
	v.SetDefault("client.debug_sub", "")
}

// DefaultConfig returns the configuration with only defaults applied
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(err)
	}
	return &cfg
}

// Load reads defaults, then the config file at path (if any), then
// SHIFTSYNC_* environment variables.
// Validation is deferred to allow CLI flag overrides to be applied first
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}
	return &cfg, nil
}
