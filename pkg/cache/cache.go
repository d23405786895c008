package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss   = errors.New("cache: key not found")
	ErrBadDest     = errors.New("cache: unsupported destination type")
	// ErrLockNotHeld means the lock expired or is held under another token.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	// TryLock takes key for ttl. The token identifies this holder to Unlock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases key only if it is still held under token.
	Unlock(ctx context.Context, key, token string) error
}

// Store is a Service that owns resources.
type Store interface {
	Service
	Close() error
}
