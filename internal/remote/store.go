// Package remote defines the contract of the authoritative document store
// the client mirrors. Any push-capable transport can satisfy it.
package remote

import (
	"context"
	"errors"

	"github.com/iudanet/bookclub/pkg/api"
)

//go:generate moq -out store_mock.go . Store

// Common remote store errors
var (
	// ErrNotFound indicates that the document or collection does not exist
	ErrNotFound = errors.New("document not found")

	// ErrForbidden indicates that the actor may not perform the write
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized indicates a missing or expired identity
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalid indicates a request the store refused as malformed
	ErrInvalid = errors.New("invalid request")
)

// Event is one delivery of a subscription: either a full snapshot or the
// error that ended the stream. After an error the channel is closed.
type Event struct {
	Err      error
	Snapshot api.Snapshot
}

// Store is the remote collaborator.
type Store interface {
	// Subscribe streams full ordered snapshots of collection matching q.
	// The first event carries the current state. The channel is closed when
	// ctx is cancelled or after an error event.
	Subscribe(ctx context.Context, collection string, q api.Query) (<-chan Event, error)

	// Create stores a new document owned by the calling actor and returns
	// the id assigned by the store.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update applies patch to a single document atomically.
	Update(ctx context.Context, collection, id string, patch api.Patch) error

	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error
}
