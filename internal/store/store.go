package store

import (
	"context"
	"errors"
)

// Common errors returned by the store
var (
	ErrNotFound = errors.New("key not found")
)

// Store is the durable key-value store behind carts and record logs.
// Set is last-write-wins; no backend offers more than that.
type Store interface {
	// Get returns the stored value or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key
	Set(ctx context.Context, key string, value []byte) error

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error

	Close() error
}
