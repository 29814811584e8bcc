// Package cache is a small JSON read-through cache used for short-lived
// snapshots, such as merged video status views that clients poll faster
// than the database should be hit.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// GetJSON unmarshals the cached value into dst; hit is false on a miss.
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
