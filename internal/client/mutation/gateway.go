// Package mutation is the only write path of a collection store. Every intent
// is checked against the current registry state before it reaches the remote
// store, and every outcome is reported as a Result.
package mutation

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/remote"
	"github.com/iudanet/bookclub/pkg/api"
)

//go:generate moq -out actors_mock.go . Actors

// Actors provides the identity of the current reader.
type Actors interface {
	Current() (models.Actor, bool)
}

// Reader is the read side the gateway validates against.
type Reader[T models.Entity] interface {
	ByID(id string) (T, bool)
	ByOwner(ownerID string) iter.Seq[T]
	Generation() uint64
}

// Rules are the per-kind checks applied before a write.
type Rules[T models.Entity] struct {
	// Validate checks a create payload
	Validate func(Payload) error
	// ValidateUpdate checks an update payload against the stored entity
	ValidateUpdate func(T, Payload) error
	// UniqueKey and PayloadKey define the one-per-owner guard. Empty keys
	// never conflict.
	UniqueKey  func(T) string
	PayloadKey func(Payload) string
	Collection string
}

// Relation describes a per-actor membership kept inside the target entity
// as an array of actor ids. A counter mirroring the array is maintained by
// the remote store and never written by the client.
type Relation[T models.Entity] struct {
	Contains func(T, string) bool
	Name     string
	Field    string
	// OwnerLocked forbids the owner from leaving the relation
	OwnerLocked bool
}

// Gateway validates intents and forwards them to the remote store.
type Gateway[T models.Entity] struct {
	remote  remote.Store
	actors  Actors
	reader  Reader[T]
	pending *Pending
	logger  *slog.Logger
	rules   Rules[T]
}

// New creates a gateway for one collection.
func New[T models.Entity](rules Rules[T], rs remote.Store, actors Actors, reader Reader[T], logger *slog.Logger) *Gateway[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway[T]{
		rules:   rules,
		remote:  rs,
		actors:  actors,
		reader:  reader,
		pending: NewPending(),
		logger:  logger.With("collection", rules.Collection),
	}
}

// Applied must be called after every applied snapshot.
func (g *Gateway[T]) Applied(generation uint64) {
	g.pending.Applied(generation)
}

// Reset drops the in-flight overlay.
func (g *Gateway[T]) Reset() {
	g.pending.Reset()
}

func (g *Gateway[T]) actor(op string) (models.Actor, *Error) {
	if g.actors == nil {
		return models.Actor{}, Errorf(KindUnauthenticated, op, "no active actor")
	}
	a, ok := g.actors.Current()
	if !ok || a.ID == "" {
		return models.Actor{}, Errorf(KindUnauthenticated, op, "no active actor")
	}
	return a, nil
}

// recoverResult turns a panic in a caller-supplied rule into a failed Result.
func (g *Gateway[T]) recoverResult(op string, res *Result) {
	if r := recover(); r != nil {
		g.logger.Error("Mutation panicked", "op", op, "panic", r)
		*res = fail(Errorf(KindValidation, op, "rejected: %v", r))
	}
}

// Create stores a new entity owned by the current actor.
func (g *Gateway[T]) Create(ctx context.Context, payload Payload) (res Result) {
	const op = "create"
	defer g.recoverResult(op, &res)

	actor, merr := g.actor(op)
	if merr != nil {
		return fail(merr)
	}

	if g.rules.Validate != nil {
		if err := g.rules.Validate(payload); err != nil {
			return fail(Validation(op, err))
		}
	}

	clean := Sanitize(payload)
	if len(clean) == 0 {
		return fail(Errorf(KindValidation, op, "empty payload"))
	}

	if g.rules.UniqueKey != nil && g.rules.PayloadKey != nil {
		if key := g.rules.PayloadKey(clean); key != "" {
			for existing := range g.reader.ByOwner(actor.ID) {
				if g.rules.UniqueKey(existing) == key {
					return fail(&Error{
						Kind: KindDuplicateConflict,
						Op:   op,
						Msg:  fmt.Sprintf("already exists as %s", existing.EntityID()),
					})
				}
			}
		}
	}

	id, err := g.remote.Create(ctx, g.rules.Collection, clean)
	if err != nil {
		g.logger.Warn("Create rejected", "actor", actor.ID, "error", err)
		return fail(FromRemote(op, err))
	}
	return ok(id)
}

// Update sets fields of an entity owned by the current actor.
func (g *Gateway[T]) Update(ctx context.Context, id string, payload Payload) (res Result) {
	const op = "update"
	defer g.recoverResult(op, &res)

	actor, merr := g.actor(op)
	if merr != nil {
		return fail(merr)
	}

	existing, found := g.reader.ByID(id)
	if !found {
		return fail(Errorf(KindNotFound, op, "%s %s", g.rules.Collection, id))
	}
	if existing.EntityOwner() != actor.ID {
		return fail(Errorf(KindForbidden, op, "%s is owned by another user", id))
	}

	if g.rules.ValidateUpdate != nil {
		if err := g.rules.ValidateUpdate(existing, payload); err != nil {
			return fail(Validation(op, err))
		}
	}

	clean := Sanitize(payload)
	if len(clean) == 0 {
		return fail(Errorf(KindValidation, op, "nothing to update"))
	}

	if err := g.remote.Update(ctx, g.rules.Collection, id, api.Patch{Set: clean}); err != nil {
		g.logger.Warn("Update rejected", "id", id, "actor", actor.ID, "error", err)
		return fail(FromRemote(op, err))
	}
	return ok(id)
}

// Delete removes an entity owned by the current actor.
func (g *Gateway[T]) Delete(ctx context.Context, id string) (res Result) {
	const op = "delete"
	defer g.recoverResult(op, &res)

	actor, merr := g.actor(op)
	if merr != nil {
		return fail(merr)
	}

	existing, found := g.reader.ByID(id)
	if !found {
		return fail(Errorf(KindNotFound, op, "%s %s", g.rules.Collection, id))
	}
	if existing.EntityOwner() != actor.ID {
		return fail(Errorf(KindForbidden, op, "%s is owned by another user", id))
	}

	if err := g.remote.Delete(ctx, g.rules.Collection, id); err != nil {
		g.logger.Warn("Delete rejected", "id", id, "actor", actor.ID, "error", err)
		return fail(FromRemote(op, err))
	}
	return ok(id)
}

// Related reports whether the current actor is in rel of target, taking
// in-flight writes into account.
func (g *Gateway[T]) Related(id string, rel Relation[T]) bool {
	actor, merr := g.actor("related")
	if merr != nil {
		return false
	}
	target, found := g.reader.ByID(id)
	cached := found && rel.Contains(target, actor.ID)
	return g.pending.Effective(Key{Target: id, Relation: rel.Name, Actor: actor.ID}, cached)
}

// Toggle flips the current actor's membership in rel of target. Two
// immediate calls cancel each other out.
func (g *Gateway[T]) Toggle(ctx context.Context, id string, rel Relation[T]) (res Result, now bool) {
	const op = "toggle"
	defer g.recoverResult(op, &res)

	actor, target, merr := g.relationTarget(op, id)
	if merr != nil {
		return fail(merr), false
	}

	key := Key{Target: id, Relation: rel.Name, Actor: actor.ID}
	cached := rel.Contains(target, actor.ID)
	if rel.OwnerLocked && target.EntityOwner() == actor.ID && g.pending.Effective(key, cached) {
		return fail(Errorf(KindForbidden, op, "owner cannot leave %s", id)), true
	}

	want, _ := g.pending.Flip(key, cached)
	return g.writeRelation(ctx, op, key, rel, actor.ID, want), want
}

// SetRelation puts the current actor into rel of target (want=true) or
// removes them. Reaching a state that already holds succeeds without a write.
func (g *Gateway[T]) SetRelation(ctx context.Context, id string, rel Relation[T], want bool) (res Result) {
	const op = "set relation"
	defer g.recoverResult(op, &res)

	actor, target, merr := g.relationTarget(op, id)
	if merr != nil {
		return fail(merr)
	}
	if !want && rel.OwnerLocked && target.EntityOwner() == actor.ID {
		return fail(Errorf(KindForbidden, op, "owner cannot leave %s", id))
	}

	key := Key{Target: id, Relation: rel.Name, Actor: actor.ID}
	if !g.pending.Begin(key, rel.Contains(target, actor.ID), want) {
		return ok(id)
	}
	return g.writeRelation(ctx, op, key, rel, actor.ID, want)
}

// RemoveMember takes another actor out of rel. Only the owner of the target
// may do it and the owner cannot remove themselves.
func (g *Gateway[T]) RemoveMember(ctx context.Context, id string, rel Relation[T], memberID string) (res Result) {
	const op = "remove member"
	defer g.recoverResult(op, &res)

	actor, target, merr := g.relationTarget(op, id)
	if merr != nil {
		return fail(merr)
	}
	if target.EntityOwner() != actor.ID {
		return fail(Errorf(KindForbidden, op, "only the owner can remove members of %s", id))
	}
	if memberID == "" || memberID == target.EntityOwner() {
		return fail(Errorf(KindForbidden, op, "owner cannot be removed from %s", id))
	}

	patch := api.Patch{ArrayRemove: map[string][]string{rel.Field: {memberID}}}
	if err := g.remote.Update(ctx, g.rules.Collection, id, patch); err != nil {
		g.logger.Warn("Remove member rejected", "id", id, "member", memberID, "error", err)
		return fail(FromRemote(op, err))
	}
	return ok(id)
}

func (g *Gateway[T]) relationTarget(op, id string) (models.Actor, T, *Error) {
	var zero T
	actor, merr := g.actor(op)
	if merr != nil {
		return models.Actor{}, zero, merr
	}
	target, found := g.reader.ByID(id)
	if !found {
		return models.Actor{}, zero, Errorf(KindNotFound, op, "%s %s", g.rules.Collection, id)
	}
	return actor, target, nil
}

func (g *Gateway[T]) writeRelation(ctx context.Context, op string, key Key, rel Relation[T], actorID string, want bool) Result {
	patch := api.Patch{}
	if want {
		patch.ArrayUnion = map[string][]string{rel.Field: {actorID}}
	} else {
		patch.ArrayRemove = map[string][]string{rel.Field: {actorID}}
	}

	if err := g.remote.Update(ctx, g.rules.Collection, key.Target, patch); err != nil {
		g.pending.Fail(key)
		g.logger.Warn("Relation write rejected", "id", key.Target, "relation", rel.Name, "error", err)
		return fail(FromRemote(op, err))
	}
	g.pending.Done(key, g.reader.Generation(), "")
	return ok(key.Target)
}

// TogglePresence flips whether the current actor owns an entity identified
// by key: it creates one from payload or deletes the existing one. find
// looks the entity up in the registry.
func (g *Gateway[T]) TogglePresence(ctx context.Context, key string, find func(actorID string) (T, bool), payload Payload) (res Result, now bool) {
	const op = "toggle presence"
	defer g.recoverResult(op, &res)

	actor, merr := g.actor(op)
	if merr != nil {
		return fail(merr), false
	}

	// payload описывает сущность в обе стороны, проверяем до записи в оверлей
	if g.rules.Validate != nil {
		if err := g.rules.Validate(payload); err != nil {
			return fail(Validation(op, err)), false
		}
	}
	clean := Sanitize(payload)
	if key == "" || len(clean) == 0 {
		return fail(Errorf(KindValidation, op, "empty payload")), false
	}

	existing, found := find(actor.ID)
	pk := Key{Target: key, Relation: "presence", Actor: actor.ID}
	want, ref := g.pending.Flip(pk, found)

	if want {
		id, err := g.remote.Create(ctx, g.rules.Collection, clean)
		if err != nil {
			g.pending.Fail(pk)
			return fail(FromRemote(op, err)), !want
		}
		g.pending.Done(pk, g.reader.Generation(), id)
		return ok(id), true
	}

	id := ref
	if id == "" && found {
		id = existing.EntityID()
	}
	if id == "" {
		g.pending.Fail(pk)
		return fail(Errorf(KindNotFound, op, "%s", key)), false
	}
	if err := g.remote.Delete(ctx, g.rules.Collection, id); err != nil {
		g.pending.Fail(pk)
		return fail(FromRemote(op, err)), !want
	}
	g.pending.Done(pk, g.reader.Generation(), "")
	return ok(id), false
}

// Present reports whether the current actor owns the entity identified by
// key, taking in-flight writes into account.
func (g *Gateway[T]) Present(key string, find func(actorID string) (T, bool)) bool {
	actor, merr := g.actor("present")
	if merr != nil {
		return false
	}
	_, found := find(actor.ID)
	return g.pending.Effective(Key{Target: key, Relation: "presence", Actor: actor.ID}, found)
}
