// Package cache is the read-through response cache used as an offline
// fallback for GET requests.
//
// An entry is valid while now - storedAt < TTL. Expired entries may still be
// physically present but are never returned; callers cannot tell "expired"
// from "never cached", both are ErrMiss. Capacity is unbounded.
package cache

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// ErrMiss reports that no valid entry exists for a key.
var ErrMiss = errors.New("cache miss")

type Store interface {
	// Put stores value under key, replacing any previous entry.
	Put(ctx context.Context, key string, value []byte) error
	// Get returns the value for key or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Clear drops every entry.
	Clear(ctx context.Context) error
}

// Key builds the request identity used as cache key: method, path and the
// query string with parameters sorted by name.
func Key(method, path string, query url.Values) string {
	k := method + " " + path
	if len(query) > 0 {
		k += "?" + query.Encode()
	}
	return k
}

type Option func(*settings)

type settings struct {
	ttl time.Duration
	now func() time.Time
}

func WithTTL(ttl time.Duration) Option {
	return func(s *settings) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func newSettings(opts []Option) settings {
	s := settings{ttl: common.CacheTTL, now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s settings) expired(storedAt time.Time) bool {
	return s.now().Sub(storedAt) >= s.ttl
}
