// Package journal keeps append-only JSON record logs in a key-value store.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/inviteu/internal/store"
)

var ErrCorruptLog = errors.New("record log is unreadable")

const (
	KeyOrders   = "orders"
	KeyRequests = "requests"
)

// Journal appends records of type T to a JSON array stored under one key.
// Records are never rewritten or deduplicated.
type Journal[T any] struct {
	mu    sync.Mutex
	store store.Store
	key   string
}

func New[T any](s store.Store, key string) *Journal[T] {
	return &Journal[T]{store: s, key: key}
}

func (j *Journal[T]) Key() string {
	return j.key
}

func (j *Journal[T]) Append(ctx context.Context, record T) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.read(ctx)
	if err != nil {
		return err
	}
	records = append(records, record)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal %s log failed: %w", j.key, err)
	}
	if err := j.store.Set(ctx, j.key, data); err != nil {
		return fmt.Errorf("persist %s log failed: %w", j.key, err)
	}
	return nil
}

// List returns every record in append order.
func (j *Journal[T]) List(ctx context.Context) ([]T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read(ctx)
}

func (j *Journal[T]) read(ctx context.Context) ([]T, error) {
	data, err := j.store.Get(ctx, j.key)
	if errors.Is(err, store.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s log failed: %w", j.key, err)
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		// refuse to overwrite records we cannot read
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLog, j.key, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}
