package storage

import "context"

//go:generate moq -out kvstorage_mock.go . KVStorage

// KVStorage is a string-keyed durable byte store. Last write wins per key;
// no transactional guarantees across keys.
type KVStorage interface {
	// Get returns the value stored under key
	// Returns ErrKeyNotFound if nothing was stored
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
