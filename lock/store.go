package lock

import (
	"context"
	"time"
)

// Store is one independent lock authority. Each call is compare-and-set on the token.
type Store interface {
	// TryAcquire sets key to token with ttl if key is unset
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Release deletes key if it still holds token
	Release(ctx context.Context, key, token string) (bool, error)
	// Extend resets the ttl of key if it still holds token
	Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}
