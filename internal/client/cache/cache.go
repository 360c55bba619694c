// Package cache persists the last applied snapshot of a collection so that
// views keep working when no live subscription exists.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/iudanet/bookclub/internal/client/storage"
)

const keyPrefix = "snapshot/"

// Key returns the storage key of a collection snapshot. Actor-scoped
// collections are kept per actor so one reader never sees another's cache.
func Key(collection, actorID string) string {
	if actorID == "" {
		return keyPrefix + collection
	}
	return keyPrefix + collection + "/" + actorID
}

// Store is a typed snapshot cache over a KVStorage.
type Store[T any] struct {
	kv     storage.KVStorage
	logger *slog.Logger
}

// New creates a snapshot cache. A nil kv gives a cache that never
// remembers anything.
func New[T any](kv storage.KVStorage, logger *slog.Logger) *Store[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[T]{kv: kv, logger: logger}
}

// Save persists items under key. Failures are logged and swallowed.
func (s *Store[T]) Save(ctx context.Context, key string, items []T) {
	if s.kv == nil {
		return
	}
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		s.logger.Warn("Failed to encode snapshot", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.Warn("Failed to persist snapshot", "key", key, "error", err)
	}
}

// Load returns the last saved snapshot under key. The second value is false
// when nothing usable was stored.
func (s *Store[T]) Load(ctx context.Context, key string) ([]T, bool) {
	if s.kv == nil {
		return nil, false
	}

	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.logger.Warn("Failed to read snapshot", "key", key, "error", err)
		}
		return nil, false
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Warn("Corrupted snapshot ignored", "key", key, "error", err)
		return nil, false
	}
	return items, true
}

// Forget removes the snapshot stored under key.
func (s *Store[T]) Forget(ctx context.Context, key string) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to drop snapshot", "key", key, "error", err)
	}
}
