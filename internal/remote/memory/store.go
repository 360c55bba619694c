// Package memory implements remote.Store in process. It follows the same
// authorization and patch rules as the HTTP server and backs the client
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/bookclub/internal/config"
	"github.com/iudanet/bookclub/internal/document"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/remote"
	"github.com/iudanet/bookclub/pkg/api"
)

// Backend holds the shared state of every actor-bound Store.
type Backend struct {
	collections map[string]*collection
	relations   map[string][]document.Relation
	subs        map[int]*subscriber
	now         func() time.Time
	nextSub     int
	mu          sync.Mutex
}

type collection struct {
	docs     map[string]api.Document
	revision int64
}

type subscriber struct {
	notify     chan struct{}
	fail       chan error
	collection string
}

// NewBackend creates an empty backend serving the default catalogue.
func NewBackend() *Backend {
	return &Backend{
		collections: make(map[string]*collection),
		relations:   config.RelationsOf(config.DefaultCollections()),
		subs:        make(map[int]*subscriber),
		now:         time.Now,
	}
}

// SetClock replaces the time source used for createdAt/updatedAt.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// As returns a Store that performs writes on behalf of actorID.
// An empty actorID gives a read-only, anonymous store.
func (b *Backend) As(actorID string) *Store {
	return &Store{backend: b, actorID: actorID}
}

// Document returns a copy of a stored document.
func (b *Backend) Document(collection, id string) (api.Document, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.collections[collection]
	if !ok {
		return api.Document{}, false
	}
	doc, ok := c.docs[id]
	if !ok {
		return api.Document{}, false
	}
	return document.Clone(doc), true
}

// Revision returns the current revision of a collection.
func (b *Backend) Revision(collection string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.collections[collection]; ok {
		return c.revision
	}
	return 0
}

// Disconnect ends every subscription on collection with err, the way a
// dropped transport would.
func (b *Backend) Disconnect(collection string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		if sub.collection != collection {
			continue
		}
		select {
		case sub.fail <- err:
		default:
		}
		delete(b.subs, id)
	}
}

func (b *Backend) collection(name string) *collection {
	c, ok := b.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]api.Document)}
		b.collections[name] = c
	}
	return c
}

// snapshot must be called without b.mu held.
func (b *Backend) snapshot(name string, q api.Query) api.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.collection(name)
	docs := make([]api.Document, 0, len(c.docs))
	for _, d := range c.docs {
		docs = append(docs, document.Clone(d))
	}

	return api.Snapshot{
		Collection: name,
		Documents:  document.Select(docs, q),
		Revision:   c.revision,
	}
}

// changed bumps the revision and wakes subscribers. Caller holds b.mu.
func (b *Backend) changed(name string, c *collection) {
	c.revision++
	for _, sub := range b.subs {
		if sub.collection != name {
			continue
		}
		select {
		case sub.notify <- struct{}{}:
		default:
			// уведомление уже ждет: подписчик все равно получит свежий снапшот
		}
	}
}

// Store is an actor-bound view of a Backend implementing remote.Store.
type Store struct {
	backend *Backend
	actorID string
}

var _ remote.Store = (*Store)(nil)

// Subscribe implements remote.Store. Snapshots are coalesced: a slow reader
// skips intermediate revisions and always receives the latest one.
func (s *Store) Subscribe(ctx context.Context, name string, q api.Query) (<-chan remote.Event, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection is required", remote.ErrInvalid)
	}

	b := s.backend
	sub := &subscriber{
		collection: name,
		notify:     make(chan struct{}, 1),
		fail:       make(chan error, 1),
	}
	sub.notify <- struct{}{}

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = sub
	b.mu.Unlock()

	out := make(chan remote.Event)
	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.fail:
				select {
				case out <- remote.Event{Err: err}:
				case <-ctx.Done():
				}
				return
			case <-sub.notify:
				snap := b.snapshot(name, q)
				select {
				case out <- remote.Event{Snapshot: snap}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Create implements remote.Store.
func (s *Store) Create(ctx context.Context, name string, fields map[string]any) (string, error) {
	if s.actorID == "" {
		return "", remote.ErrUnauthorized
	}
	for k := range fields {
		if models.IsReservedField(k) {
			return "", fmt.Errorf("%w: field %q is read-only", remote.ErrInvalid, k)
		}
	}
	normalized, err := document.Normalize(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrInvalid, err)
	}

	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := document.Recount(normalized, b.relations[name]); err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrInvalid, err)
	}

	now := b.now().UTC()
	doc := api.Document{
		ID:        uuid.New().String(),
		OwnerID:   s.actorID,
		Fields:    normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c := b.collection(name)
	c.docs[doc.ID] = doc
	b.changed(name, c)

	return doc.ID, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, name, id string, patch api.Patch) error {
	if s.actorID == "" {
		return remote.ErrUnauthorized
	}

	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.collection(name)
	doc, ok := c.docs[id]
	if !ok {
		return remote.ErrNotFound
	}
	rels := b.relations[name]
	if !document.CanPatch(doc, s.actorID, patch, rels) {
		return remote.ErrForbidden
	}

	fields, err := document.Apply(doc.Fields, patch, rels)
	if err != nil {
		return fmt.Errorf("%w: %v", remote.ErrInvalid, err)
	}

	doc.Fields = fields
	doc.UpdatedAt = document.NextUpdatedAt(doc.UpdatedAt, b.now().UTC())
	c.docs[id] = doc
	b.changed(name, c)

	return nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, name, id string) error {
	if s.actorID == "" {
		return remote.ErrUnauthorized
	}

	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.collection(name)
	doc, ok := c.docs[id]
	if !ok {
		return remote.ErrNotFound
	}
	if !document.CanDelete(doc, s.actorID) {
		return remote.ErrForbidden
	}

	delete(c.docs, id)
	b.changed(name, c)

	return nil
}
