package config

import (
	"os"
	"path/filepath"
)

const (
	StoreBackendFile     = "file"
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetStoreDir() string
	GetStorePassphrase() string
	GetRedisURL() string
	GetRedisKeyPrefix() string
	GetDatabaseURL() string
	GetDatabaseSchema() string
}

type Store struct {
	env EnvVars
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() string {
	return s.env.get("LUNAR_STORE", StoreBackendFile)
}

func (s Store) GetStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return s.env.get("LUNAR_STORE_DIR", filepath.Join(home, ".lunarbase"))
}

// GetStorePassphrase enables at-rest encryption of the file store when set
func (s Store) GetStorePassphrase() string {
	return s.env.get("LUNAR_STORE_PASSPHRASE", "")
}

func (s Store) GetRedisURL() string {
	return s.env.get("LUNAR_REDIS_URL", "redis://localhost:6379/0")
}

func (s Store) GetRedisKeyPrefix() string {
	return s.env.get("LUNAR_REDIS_PREFIX", "lunar:session:")
}

func (s Store) GetDatabaseURL() string {
	return s.env.get("LUNAR_DATABASE_URL", "")
}

func (s Store) GetDatabaseSchema() string {
	return s.env.get("LUNAR_DATABASE_SCHEMA", "lunar")
}
