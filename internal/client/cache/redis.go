package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/redis/go-redis/v9"
)

type redisEntry struct {
	Value    []byte `json:"value"`
	StoredAt int64  `json:"stored_at"`
}

// RedisStore keeps entries under "cache:<key>". Redis expires keys on its own
// after the TTL, but validity is still decided by stored_at on read so both
// backends share one boundary rule.
type RedisStore struct {
	settings
	client *redis.Client
}

func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{settings: newSettings(opts), client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	data, err := json.Marshal(redisEntry{Value: value, StoredAt: s.now().UnixNano()})
	if err != nil {
		return fmt.Errorf("failed to encode cache[%s]: %w", key, err)
	}
	if err := s.client.Set(ctx, common.RedisCachePrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to put cache[%s]: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, common.RedisCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache[%s]: %w", key, err)
	}

	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, ErrMiss
	}
	if s.expired(time.Unix(0, e.StoredAt)) {
		return nil, ErrMiss
	}
	return e.Value, nil
}

// Clear deletes every key under the cache prefix. Keys of other tenants of
// the same Redis database are left alone.
func (s *RedisStore) Clear(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, common.RedisCachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
