// Package collection combines cache, registry, sync engine and mutation
// gateway into one store per entity kind.
package collection

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/iudanet/bookclub/internal/client/cache"
	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/client/registry"
	"github.com/iudanet/bookclub/internal/client/storage"
	"github.com/iudanet/bookclub/internal/client/syncengine"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/remote"
	"github.com/iudanet/bookclub/pkg/api"
)

// Scope says who can see a collection.
type Scope int

const (
	// ScopePublic collections are readable by everyone and survive logout
	ScopePublic Scope = iota
	// ScopeActor collections are bound to the signed-in reader
	ScopeActor
)

// Kind configures a store for one entity type.
type Kind[T models.Entity] struct {
	Query          func(now time.Time, actorID string) api.Query
	Parents        registry.ParentsFunc[T]
	UniqueKey      func(T) string
	PayloadKey     func(mutation.Payload) string
	Validate       func(mutation.Payload) error
	ValidateUpdate func(T, mutation.Payload) error
	Collection     string
	Scope          Scope
}

// Deps are the collaborators shared by every store of an application.
type Deps struct {
	Remote remote.Store
	Actors mutation.Actors
	KV     storage.KVStorage
	Logger *slog.Logger
	Clock  func() time.Time
}

// Store is the public API of one synchronized collection.
type Store[T models.Entity] struct {
	registry *registry.Registry[T]
	cache    *cache.Store[T]
	engine   *syncengine.Engine[T]
	gateway  *mutation.Gateway[T]
	logger   *slog.Logger
	kind     Kind[T]
}

// New wires a store for kind.
func New[T models.Entity](kind Kind[T], deps Deps) *Store[T] {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Store[T]{
		kind:     kind,
		logger:   logger,
		registry: registry.New(kind.Parents),
		cache:    cache.New[T](deps.KV, logger),
	}

	s.gateway = mutation.New(mutation.Rules[T]{
		Collection:     kind.Collection,
		Validate:       kind.Validate,
		ValidateUpdate: kind.ValidateUpdate,
		UniqueKey:      kind.UniqueKey,
		PayloadKey:     kind.PayloadKey,
	}, deps.Remote, deps.Actors, s.registry, logger)

	query := func(string) api.Query { return api.Query{} }
	if kind.Query != nil {
		query = func(actorID string) api.Query { return kind.Query(clock(), actorID) }
	}

	s.engine = syncengine.New(syncengine.Config[T]{
		Collection: kind.Collection,
		Scoped:     kind.Scope == ScopeActor,
		Query:      query,
		Remote:     deps.Remote,
		Registry:   s.registry,
		Cache:      s.cache,
		Logger:     logger,
		OnApplied:  s.gateway.Applied,
	})

	return s
}

// Collection returns the remote collection name.
func (s *Store[T]) Collection() string { return s.kind.Collection }

// Scope returns the visibility of the collection.
func (s *Store[T]) Scope() Scope { return s.kind.Scope }

// Start subscribes on behalf of actorID. Public collections accept an
// empty actor.
func (s *Store[T]) Start(ctx context.Context, actorID string) error {
	return s.engine.Start(ctx, actorID)
}

// Stop ends the subscription. Actor-scoped data is dropped.
func (s *Store[T]) Stop() {
	s.engine.Stop()
	s.gateway.Reset()
}

// Restore loads the last saved snapshot into the registry while no
// subscription is running. It reports whether anything was loaded.
func (s *Store[T]) Restore(ctx context.Context, actorID string) bool {
	if s.engine.Active() {
		return false
	}
	if s.kind.Scope == ScopePublic {
		actorID = ""
	} else if actorID == "" {
		return false
	}

	items, ok := s.cache.Load(ctx, cache.Key(s.kind.Collection, actorID))
	if !ok {
		return false
	}
	// подписка могла стартовать, пока читали кэш
	if !s.engine.Restore(items) {
		return false
	}
	s.logger.Debug("Restored cached snapshot", "collection", s.kind.Collection, "count", len(items))
	return true
}

// Forget drops the cached snapshot of actorID. Public collections share one
// snapshot between readers and keep it.
func (s *Store[T]) Forget(ctx context.Context, actorID string) {
	if s.kind.Scope == ScopePublic || actorID == "" {
		return
	}
	s.cache.Forget(ctx, cache.Key(s.kind.Collection, actorID))
}

// State returns the lifecycle state of the data.
func (s *Store[T]) State() syncengine.State {
	return s.engine.State()
}

// WaitReady blocks until a live snapshot has been applied or ctx ends.
func (s *Store[T]) WaitReady(ctx context.Context) error {
	for {
		state, changed := s.engine.Watch()
		if state == syncengine.StateReady {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Generation returns the number of snapshots applied so far.
func (s *Store[T]) Generation() uint64 { return s.registry.Generation() }

// Len returns the number of entities held.
func (s *Store[T]) Len() int { return s.registry.Len() }

// ByID looks up an entity.
func (s *Store[T]) ByID(id string) (T, bool) { return s.registry.ByID(id) }

// ByOwner iterates entities owned by ownerID.
func (s *Store[T]) ByOwner(ownerID string) iter.Seq[T] { return s.registry.ByOwner(ownerID) }

// ByParent iterates entities under parentID.
func (s *Store[T]) ByParent(parentID string) iter.Seq[T] { return s.registry.ByParent(parentID) }

// All iterates every entity in collection order.
func (s *Store[T]) All() iter.Seq[T] { return s.registry.All() }

// FindUnique returns the entity of ownerID under parentID.
func (s *Store[T]) FindUnique(parentID, ownerID string) (T, bool) {
	for item := range s.registry.ByParent(parentID) {
		if item.EntityOwner() == ownerID {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Create stores a new entity owned by the current actor.
func (s *Store[T]) Create(ctx context.Context, payload mutation.Payload) mutation.Result {
	return s.gateway.Create(ctx, payload)
}

// Update changes fields of an owned entity.
func (s *Store[T]) Update(ctx context.Context, id string, payload mutation.Payload) mutation.Result {
	return s.gateway.Update(ctx, id, payload)
}

// Delete removes an owned entity.
func (s *Store[T]) Delete(ctx context.Context, id string) mutation.Result {
	return s.gateway.Delete(ctx, id)
}

// Toggle flips the current actor in rel of entity id.
func (s *Store[T]) Toggle(ctx context.Context, id string, rel mutation.Relation[T]) (mutation.Result, bool) {
	return s.gateway.Toggle(ctx, id, rel)
}

// SetRelation moves the current actor into or out of rel of entity id.
func (s *Store[T]) SetRelation(ctx context.Context, id string, rel mutation.Relation[T], want bool) mutation.Result {
	return s.gateway.SetRelation(ctx, id, rel, want)
}

// RemoveMember takes memberID out of rel of entity id.
func (s *Store[T]) RemoveMember(ctx context.Context, id string, rel mutation.Relation[T], memberID string) mutation.Result {
	return s.gateway.RemoveMember(ctx, id, rel, memberID)
}

// Related reports the current actor's effective state in rel of entity id.
func (s *Store[T]) Related(id string, rel mutation.Relation[T]) bool {
	return s.gateway.Related(id, rel)
}

// TogglePresence creates or deletes the current actor's entity under key.
func (s *Store[T]) TogglePresence(ctx context.Context, key string, find func(string) (T, bool), payload mutation.Payload) (mutation.Result, bool) {
	return s.gateway.TogglePresence(ctx, key, find, payload)
}

// Present reports whether the current actor effectively owns an entity under key.
func (s *Store[T]) Present(key string, find func(string) (T, bool)) bool {
	return s.gateway.Present(key, find)
}
