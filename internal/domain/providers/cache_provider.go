package providers

import (
	"context"
)

// CacheProvider is a byte-oriented key/value cache shared between puller runs.
type CacheProvider interface {
	// Get returns a NOT_FOUND AppError for missing keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value; expirationSeconds <= 0 keeps it forever.
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}
