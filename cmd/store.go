package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/store"
	"github.com/sells-group/clickmap/pkg/geocode"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "clickmap.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openMigratedStore opens the configured store and applies its schema.
func openMigratedStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initRedisCache returns the Redis geocode cache, or nil when no address is
// configured or the server is unreachable.
func initRedisCache(ctx context.Context) *store.RedisCache {
	client := store.OpenRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if client == nil {
		return nil
	}
	rc := store.NewRedisCache(client, time.Duration(cfg.Cache.TTLDays)*24*time.Hour)
	if err := rc.Ping(ctx); err != nil {
		zap.L().Warn("redis unavailable, using store cache only",
			zap.String("addr", cfg.Cache.RedisAddr),
			zap.Error(err),
		)
		_ = rc.Close()
		return nil
	}
	return rc
}

// geocodeCache layers Redis, when present, over the durable store cache.
func geocodeCache(st store.Store, rc *store.RedisCache) geocode.Cache {
	if rc == nil {
		return st
	}
	return store.NewTieredCache(rc, st)
}
