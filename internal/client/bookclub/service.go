package bookclub

import (
	"slices"

	"github.com/iudanet/bookclub/internal/client/collection"
	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

// service is the part shared by every domain service: its store and the
// identity of the current reader.
type service[T models.Entity] struct {
	store  *collection.Store[T]
	actors mutation.Actors
}

// Store exposes the underlying collection store.
func (s service[T]) Store() *collection.Store[T] { return s.store }

func (s service[T]) actorID() string {
	actor, ok := s.actors.Current()
	if !ok {
		return ""
	}
	return actor.ID
}

// mine returns the current reader's entity under parentID.
func (s service[T]) mine(parentID string) (T, bool) {
	actorID := s.actorID()
	if actorID == "" {
		var zero T
		return zero, false
	}
	return s.store.FindUnique(parentID, actorID)
}

// finder adapts FindUnique to the presence lookup of the gateway
func (s service[T]) finder(parentID string) func(string) (T, bool) {
	return func(actorID string) (T, bool) {
		return s.store.FindUnique(parentID, actorID)
	}
}

func (s service[T]) byParent(parentID string) []T {
	return slices.Collect(s.store.ByParent(parentID))
}

func (s service[T]) byOwner(ownerID string) []T {
	return slices.Collect(s.store.ByOwner(ownerID))
}
