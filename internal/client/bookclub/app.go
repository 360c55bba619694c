// Package bookclub is the client side of the reading club: one
// synchronized collection store per entity kind, wired to the reader
// session.
package bookclub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/bookclub/internal/client/collection"
	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/client/storage"
	"github.com/iudanet/bookclub/internal/client/syncengine"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/remote"
)

// Session is the reader identity the application follows.
type Session interface {
	mutation.Actors
	Watch(fn func(models.Actor, bool)) func()
}

// Config holds the collaborators of an App.
type Config struct {
	Remote  remote.Store
	Session Session
	KV      storage.KVStorage
	Logger  *slog.Logger
	Clock   func() time.Time
}

// lifecycle is what the App needs from every store regardless of its type
type lifecycle interface {
	Collection() string
	Scope() collection.Scope
	Start(ctx context.Context, actorID string) error
	Stop()
	Restore(ctx context.Context, actorID string) bool
	Forget(ctx context.Context, actorID string)
	State() syncengine.State
}

// App owns every collection store and keeps the actor-scoped ones in step
// with the session.
type App struct {
	Reviews     *Reviews
	Comunidades *Comunidades
	Eventos     *Eventos
	Citacoes    *Citacoes
	Favorites   *Favorites
	Livros      *Livros
	Stickers    *Stickers
	Progress    *Progress

	session Session
	ctx     context.Context
	logger  *slog.Logger
	unwatch func()
	actorID string
	stores  []lifecycle
	mu      sync.Mutex
	started bool
}

// New creates an App. Nothing is subscribed until Start.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	deps := collection.Deps{
		Remote: cfg.Remote,
		Actors: cfg.Session,
		KV:     cfg.KV,
		Logger: cfg.Logger,
		Clock:  cfg.Clock,
	}

	a := &App{session: cfg.Session, logger: cfg.Logger}

	a.Reviews = &Reviews{service: newService(a, reviewKind(), deps)}
	a.Comunidades = &Comunidades{service: newService(a, comunidadeKind(), deps)}
	a.Eventos = &Eventos{service: newService(a, eventoKind(), deps), clock: cfg.Clock}
	a.Citacoes = &Citacoes{service: newService(a, citacaoKind(), deps)}
	a.Favorites = &Favorites{service: newService(a, favoriteKind(), deps)}
	a.Livros = &Livros{service: newService(a, livroKind(), deps)}
	a.Stickers = &Stickers{service: newService(a, stickerKind(), deps)}
	a.Progress = &Progress{service: newService(a, progressKind(), deps)}

	return a
}

func newService[T models.Entity](a *App, kind collection.Kind[T], deps collection.Deps) service[T] {
	deps.Logger = deps.Logger.With("collection", kind.Collection)
	store := collection.New(kind, deps)
	a.stores = append(a.stores, store)
	return service[T]{store: store, actors: deps.Actors}
}

// Start loads cached snapshots, subscribes to the public collections and,
// when a reader is signed in, to the actor-scoped ones. From then on the
// actor-scoped stores follow the session.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	a.started = true
	a.ctx = context.WithoutCancel(ctx)

	actorID := ""
	if actor, ok := a.session.Current(); ok {
		actorID = actor.ID
	}

	for _, s := range a.stores {
		if s.Restore(ctx, actorID) {
			a.logger.Debug("Using cached snapshot", "collection", s.Collection())
		}
	}

	err := a.startStores(ctx, collection.ScopePublic, "")
	if actorID != "" {
		err = errors.Join(err, a.startStores(ctx, collection.ScopeActor, actorID))
	}
	a.actorID = actorID
	a.unwatch = a.session.Watch(a.onActorChange)

	return err
}

// Stop ends every subscription. Actor-scoped data is dropped, public
// collections keep their last snapshot.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}
	a.started = false
	if a.unwatch != nil {
		a.unwatch()
		a.unwatch = nil
	}
	for _, s := range a.stores {
		s.Stop()
	}
	a.actorID = ""
}

// States reports the lifecycle state of every collection.
func (a *App) States() map[string]syncengine.State {
	out := make(map[string]syncengine.State, len(a.stores))
	for _, s := range a.stores {
		out[s.Collection()] = s.State()
	}
	return out
}

func (a *App) onActorChange(actor models.Actor, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}
	next := ""
	if ok {
		next = actor.ID
	}
	if next == a.actorID {
		return
	}

	a.logger.Info("Reader changed", "from", a.actorID, "to", next)
	a.stopStores(collection.ScopeActor)
	prev := a.actorID
	a.actorID = next
	if next == "" {
		// выход: кэш читателя больше не нужен
		a.Forget(a.ctx, prev)
		return
	}

	for _, s := range a.stores {
		if s.Scope() == collection.ScopeActor {
			s.Restore(a.ctx, next)
		}
	}
	if err := a.startStores(a.ctx, collection.ScopeActor, next); err != nil {
		a.logger.Error("Failed to start collections", "actor", next, "error", err)
	}
}

// Forget drops the cached actor-scoped snapshots of actorID, e.g. after
// the reader signs out.
func (a *App) Forget(ctx context.Context, actorID string) {
	for _, s := range a.stores {
		s.Forget(ctx, actorID)
	}
}

func (a *App) startStores(ctx context.Context, scope collection.Scope, actorID string) error {
	var g errgroup.Group
	for _, s := range a.stores {
		if s.Scope() != scope {
			continue
		}
		g.Go(func() error {
			if err := s.Start(ctx, actorID); err != nil {
				return fmt.Errorf("start %s: %w", s.Collection(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *App) stopStores(scope collection.Scope) {
	for _, s := range a.stores {
		if s.Scope() == scope {
			s.Stop()
		}
	}
}
