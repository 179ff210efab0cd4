package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/lunar-session/internal/config"
	"github.com/jrsteele09/lunar-session/store"
	"github.com/jrsteele09/lunar-session/store/file"
	"github.com/jrsteele09/lunar-session/store/memory"
	"github.com/jrsteele09/lunar-session/store/postgres"
	"github.com/jrsteele09/lunar-session/store/redis"
	"github.com/rs/zerolog/log"
)

// openStore returns the configured session store and a function releasing
// its connections.
func openStore(ctx context.Context, cfg config.StoreConfig, name string) (store.Store, func(), error) {
	noop := func() {}

	switch backend := cfg.GetStoreBackend(); backend {
	case config.StoreBackendMemory:
		return memory.New(), noop, nil

	case config.StoreBackendFile:
		var opts []file.Option
		if passphrase := cfg.GetStorePassphrase(); passphrase != "" {
			opts = append(opts, file.WithPassphrase(passphrase))
		}
		st, err := file.New(cfg.GetStoreDir(), name, opts...)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil

	case config.StoreBackendRedis:
		st, err := redis.New(ctx, cfg.GetRedisURL(), cfg.GetRedisKeyPrefix()+name)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				log.Err(err).Msg("Failed to close redis store")
			}
		}, nil

	case config.StoreBackendPostgres:
		pool, err := postgres.Open(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		st, err := postgres.New(pool, name, postgres.WithSchema(cfg.GetDatabaseSchema()))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
