// Package metadata is a small key/value repository over the local
// "metadata" table. The session store keeps its document here.
package metadata

import (
	"context"
	"time"
)

// Record is a stored value together with the time it was last written.
type Record struct {
	Value     []byte
	UpdatedAt time.Time
}

type Repository interface {
	// Get returns the record for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (rec Record, found bool, err error)
	// Set inserts or replaces the value for key in a single statement.
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]Record, error)
	Clear(ctx context.Context) error
}
