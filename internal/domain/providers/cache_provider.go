package providers

import (
	"context"
)

// CacheProvider is a byte-value key store with per-key expiry.
// The import keeps directory responses in it so a re-run inside the TTL skips the mirrors.
type CacheProvider interface {
	// Get returns an error wrapping a miss when key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value for expirationSeconds; zero keeps it until deleted
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}
