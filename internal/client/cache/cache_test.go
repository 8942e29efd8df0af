package cache

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/storage"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type backend struct {
	name  string
	store func(t *testing.T, c *clock) Store
}

func backends() []backend {
	return []backend{
		{name: "sqlite", store: func(t *testing.T, c *clock) Store {
			db, err := storage.InitDatabase(context.Background(), ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return NewSQLiteStore(db, WithClock(c.Now))
		}},
		{name: "redis", store: func(t *testing.T, c *clock) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisStore(client, WithClock(c.Now))
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

func TestStore_TTLBoundary(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: t0}
			s := b.store(t, c)

			require.NoError(t, s.Put(ctx, "GET /a", []byte("v")))

			c.Set(t0.Add(common.CacheTTL - time.Nanosecond))
			got, err := s.Get(ctx, "GET /a")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)

			c.Set(t0.Add(common.CacheTTL))
			_, err = s.Get(ctx, "GET /a")
			require.ErrorIs(t, err, ErrMiss, "exactly at TTL the entry is expired")

			c.Set(t0.Add(time.Hour))
			_, err = s.Get(ctx, "GET /a")
			require.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestStore_MissAndSupersede(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: t0}
			s := b.store(t, c)

			_, err := s.Get(ctx, "never")
			require.ErrorIs(t, err, ErrMiss)

			require.NoError(t, s.Put(ctx, "k", []byte("old")))
			c.Set(t0.Add(4 * time.Minute))
			require.NoError(t, s.Put(ctx, "k", []byte("new")))

			// The second put restarts the TTL window.
			c.Set(t0.Add(8 * time.Minute))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("new"), got)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.store(t, &clock{t: t0})

			require.NoError(t, s.Clear(ctx), "clearing an empty cache")

			require.NoError(t, s.Put(ctx, "GET /a", []byte("a")))
			require.NoError(t, s.Put(ctx, "GET /b?page=2", []byte("b")))
			require.NoError(t, s.Clear(ctx))

			for _, k := range []string{"GET /a", "GET /b?page=2"} {
				_, err := s.Get(ctx, k)
				assert.ErrorIs(t, err, ErrMiss, k)
			}

			require.NoError(t, s.Put(ctx, "GET /a", []byte("again")))
			got, err := s.Get(ctx, "GET /a")
			require.NoError(t, err)
			assert.Equal(t, []byte("again"), got)
		})
	}
}

func TestRedisStore_ClearKeepsForeignKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("session:other", "x"))
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), "GET /x", []byte("1")))
	require.NoError(t, s.Clear(context.Background()))

	assert.False(t, mr.Exists(common.RedisCachePrefix+"GET /x"))
	assert.True(t, mr.Exists("session:other"))
}

func TestSQLiteStore_ClosedDB(t *testing.T) {
	db, err := storage.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	s := NewSQLiteStore(db)
	require.NoError(t, db.Close())

	require.ErrorContains(t, s.Put(context.Background(), "k", nil), "failed to put cache[k]")
	_, err = s.Get(context.Background(), "k")
	require.ErrorContains(t, err, "failed to get cache[k]")
	require.NotErrorIs(t, err, ErrMiss)
}

func TestRedisStore_UsesPrefixAndPhysicalTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), "GET /x", []byte("1")))
	require.True(t, mr.Exists(common.RedisCachePrefix+"GET /x"))
	assert.Equal(t, common.CacheTTL, mr.TTL(common.RedisCachePrefix+"GET /x"))
}

func TestRedisStore_GarbageIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set(common.RedisCachePrefix+"k", "not json"))
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer s.Close()

	_, err := s.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "GET /user/dashboard", Key("GET", "/user/dashboard", nil))

	q := url.Values{}
	q.Set("b", "2")
	q.Set("a", "1")
	assert.Equal(t, "GET /items?a=1&b=2", Key("GET", "/items", q))

	q2 := url.Values{"a": {"1"}, "b": {"2"}}
	assert.Equal(t, Key("GET", "/items", q), Key("GET", "/items", q2), "parameter order is irrelevant")
	assert.NotEqual(t, Key("GET", "/items", q), Key("DELETE", "/items", q))
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	db, err := storage.InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := New(ctx, db, RedisOptions{}, logging.Discard())
	assert.IsType(t, &SQLiteStore{}, s)

	mr := miniredis.RunT(t)
	s = New(ctx, db, RedisOptions{Addr: mr.Addr()}, logging.Discard())
	require.IsType(t, &RedisStore{}, s)
	_ = s.(*RedisStore).Close()

	addr := mr.Addr()
	mr.Close()
	s = New(ctx, db, RedisOptions{Addr: addr}, logging.Discard())
	assert.IsType(t, &SQLiteStore{}, s, "unreachable redis falls back to sqlite")
}
