package config

import "errors"

var (
	// ErrInvalidStorageDriver indicates storage.driver is not a known backend
	ErrInvalidStorageDriver = errors.New("storage.driver must be one of memory, file, bolt, sqlite, postgres")

	// ErrMissingStorageDir indicates the file backend has no directory
	ErrMissingStorageDir = errors.New("storage.dir is required for the file driver")

	// ErrMissingDatabaseURL indicates the postgres backend has no connection string
	ErrMissingDatabaseURL = errors.New("storage.database_url is required for the postgres driver")

	// ErrWatchRequiresFileDriver indicates storage.watch was set for a non-file backend
	ErrWatchRequiresFileDriver = errors.New("storage.watch is only supported with the file driver")

	// ErrInvalidRecordBackend indicates sync.records is not memory or store
	ErrInvalidRecordBackend = errors.New("sync.records must be memory or store")

	// ErrInvalidPollInterval indicates a non-positive poll interval
	ErrInvalidPollInterval = errors.New("sync.poll_interval must be positive")

	// ErrMissingJWTSecret indicates auth.required without a secret to verify tokens
	ErrMissingJWTSecret = errors.New("auth.hs256_secret is required when auth.required is set")

	// ErrInvalidLogLevel indicates log.level is not a zerolog level
	ErrInvalidLogLevel = errors.New("invalid log.level")

	// ErrMissingServerURL indicates the sync client has nowhere to connect
	ErrMissingServerURL = errors.New("client.server_url is required")

	// ErrConfigFileNotFound indicates that the config file was not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates that the config file could not be parsed
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
