package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service stores JSON-encodable values under string keys.
type Service interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Key joins prefix and params with ':'.
func Key(prefix string, params ...any) string {
	key := prefix
	for _, p := range params {
		key = fmt.Sprintf("%s:%v", key, p)
	}
	return key
}
