// Package syncengine owns the live subscription of one collection and turns
// pushed snapshots into registry and cache state.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/bookclub/internal/client/cache"
	"github.com/iudanet/bookclub/internal/client/registry"
	"github.com/iudanet/bookclub/internal/document"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/remote"
	"github.com/iudanet/bookclub/pkg/api"
)

var (
	// ErrNoActor is returned by Start for actor-scoped collections without an actor
	ErrNoActor = errors.New("actor is required for this collection")

	// ErrStreamClosed reports a subscription the remote store ended without an error
	ErrStreamClosed = errors.New("subscription closed by remote store")
)

// State is the lifecycle of the data behind a collection.
type State int

const (
	// StateUninitialized means no snapshot from the remote store is held
	StateUninitialized State = iota
	// StateSyncing means a subscription is open and its first snapshot is pending
	StateSyncing
	// StateReady means the registry mirrors a live subscription
	StateReady
	// StateStale means the registry holds the last known good snapshot
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSyncing:
		return "syncing"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config describes one collection engine.
type Config[T models.Entity] struct {
	Remote   remote.Store
	Registry *registry.Registry[T]
	Cache    *cache.Store[T]
	Logger   *slog.Logger
	// OnApplied runs on the listener goroutine after every applied snapshot
	OnApplied func(generation uint64)
	// Query is evaluated on every Start
	Query      func(actorID string) api.Query
	Collection string
	// Scoped collections are visible to one actor only and are cleared on Stop
	Scoped bool
}

// Engine runs at most one subscription at a time.
type Engine[T models.Entity] struct {
	cfg     Config[T]
	cancel  context.CancelFunc
	done    chan struct{}
	changed chan struct{}
	actor   string
	epoch   uint64
	state   State
	mu      sync.Mutex
	active  bool
}

// New creates an inactive engine.
func New[T models.Entity](cfg Config[T]) *Engine[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Query == nil {
		cfg.Query = func(string) api.Query { return api.Query{} }
	}
	cfg.Logger = cfg.Logger.With("collection", cfg.Collection)
	return &Engine[T]{cfg: cfg, changed: make(chan struct{})}
}

// State returns the current lifecycle state.
func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Watch returns the current state and a channel closed on the next change.
func (e *Engine[T]) Watch() (State, <-chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.changed
}

// Actor returns the actor of the running subscription.
func (e *Engine[T]) Actor() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actor
}

// setState must be called with e.mu held.
func (e *Engine[T]) setState(s State) {
	if e.state == s {
		return
	}
	e.state = s
	close(e.changed)
	e.changed = make(chan struct{})
}

// Active reports whether a subscription is running.
func (e *Engine[T]) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Restore puts cached items into the registry. It does nothing and returns
// false while a subscription is running, so a cached snapshot never
// overwrites a live one.
func (e *Engine[T]) Restore(items []T) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return false
	}
	e.cfg.Registry.Replace(items)
	return true
}

// Start opens the subscription for actorID. It is a no-op while a
// subscription is running. ctx bounds only the opening call; the listener
// lives until Stop or until the remote store ends the stream.
func (e *Engine[T]) Start(ctx context.Context, actorID string) error {
	if e.cfg.Scoped && actorID == "" {
		return ErrNoActor
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		return nil
	}

	// предыдущий слушатель мог завершиться сам: после end он уже не берет блокировок
	if e.done != nil {
		<-e.done
		e.done = nil
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, err := e.cfg.Remote.Subscribe(subCtx, e.cfg.Collection, e.cfg.Query(actorID))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", e.cfg.Collection, err)
	}

	e.epoch++
	e.active = true
	e.actor = actorID
	e.cancel = cancel
	e.done = make(chan struct{})
	e.setState(StateSyncing)

	go e.listen(subCtx, events, e.epoch, e.cacheKey(actorID), e.done)

	e.cfg.Logger.Debug("Subscription started", "actor", actorID)
	return nil
}

// Stop cancels the subscription and waits for the listener to exit.
// Actor-scoped collections lose their registry contents. Stop is idempotent.
func (e *Engine[T]) Stop() {
	e.mu.Lock()
	wasActive := e.active
	e.active = false
	e.epoch++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	done := e.done
	e.done = nil
	e.actor = ""
	e.mu.Unlock()

	if done != nil {
		<-done
	}

	e.mu.Lock()
	switch {
	case e.active:
		// успели перезапустить, пока ждали слушателя
	case e.cfg.Scoped:
		e.cfg.Registry.Clear()
		e.setState(StateUninitialized)
	case e.state != StateUninitialized:
		e.setState(StateStale)
	}
	e.mu.Unlock()

	if wasActive {
		e.cfg.Logger.Debug("Subscription stopped")
	}
}

func (e *Engine[T]) cacheKey(actorID string) string {
	if !e.cfg.Scoped {
		actorID = ""
	}
	return cache.Key(e.cfg.Collection, actorID)
}

func (e *Engine[T]) listen(ctx context.Context, events <-chan remote.Event, epoch uint64, key string, done chan struct{}) {
	defer close(done)

	for {
		var (
			ev remote.Event
			ok bool
		)
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-events:
		}

		if !ok {
			if ctx.Err() != nil {
				return
			}
			e.end(epoch, ErrStreamClosed)
			return
		}
		if ev.Err != nil {
			e.end(epoch, ev.Err)
			return
		}

		items := e.decode(ev.Snapshot)

		e.mu.Lock()
		if e.epoch != epoch {
			e.mu.Unlock()
			return
		}
		gen := e.cfg.Registry.Replace(items)
		e.setState(StateReady)
		e.mu.Unlock()

		if e.cfg.Cache != nil {
			e.cfg.Cache.Save(ctx, key, items)
		}
		if e.cfg.OnApplied != nil {
			e.cfg.OnApplied(gen)
		}
	}
}

func (e *Engine[T]) decode(snap api.Snapshot) []T {
	items := make([]T, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		item, err := document.Decode[T](doc)
		if err != nil {
			e.cfg.Logger.Warn("Skipping undecodable document", "id", doc.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// end marks the subscription inactive after a listener failure. Nothing is
// retried; a new Start is required.
func (e *Engine[T]) end(epoch uint64, err error) {
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.epoch++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.setState(StateStale)
	e.mu.Unlock()

	e.cfg.Logger.Error("Subscription failed", "error", err)
}
