package cache

import (
	"context"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/redis/go-redis/v9"
)

// RedisOptions selects the Redis backend. An empty Addr means SQLite.
type RedisOptions struct {
	Addr     string
	Password string
}

// New returns a Redis-backed store when ro.Addr is set and reachable, and
// the SQLite store over db otherwise.
func New(ctx context.Context, db dbx.DBTX, ro RedisOptions, log logging.Logger, opts ...Option) Store {
	if ro.Addr == "" {
		return NewSQLiteStore(db, opts...)
	}

	client := redis.NewClient(&redis.Options{Addr: ro.Addr, Password: ro.Password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Warn(ctx, "redis cache unavailable, falling back to sqlite", "addr", ro.Addr, "error", err)
		return NewSQLiteStore(db, opts...)
	}

	log.Info(ctx, "using redis response cache", "addr", ro.Addr)
	return NewRedisStore(client, opts...)
}
