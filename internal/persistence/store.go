package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidKey is returned when a key-value operation receives an empty key.
var ErrInvalidKey = errors.New("key must not be empty")

// KeyValueStore is the persistence capability the state store is built on.
type KeyValueStore interface {
	// Put stores value under key. A ttl <= 0 means the value never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value under key. ok is false when the key is absent or
	// expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
}

func expiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}
