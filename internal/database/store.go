package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned by HGet when the key or field does not exist.
var ErrNotFound = errors.New("hash field not found")

// HashStore is a key-value store with hash-map-per-key semantics.
// Redis satisfies it natively; other backends emulate it.
type HashStore interface {
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HLen(ctx context.Context, key string) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error

	// HSetBulk writes all fields of one key in a single round trip.
	HSetBulk(ctx context.Context, key string, values map[string]string) error
}
