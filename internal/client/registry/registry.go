// Package registry keeps the derived indices of the latest applied snapshot.
//
// Readers never block: the whole index set is rebuilt on Replace and
// published through an atomic pointer, so every read observes exactly one
// snapshot.
package registry

import (
	"iter"
	"sync/atomic"

	"github.com/iudanet/bookclub/internal/models"
)

// ParentsFunc returns the parent keys an entity is indexed under.
// A review returns its book id, a community returns its member ids.
type ParentsFunc[T models.Entity] func(T) []string

type index[T models.Entity] struct {
	byID       map[string]int
	byOwner    map[string][]int
	byParent   map[string][]int
	items      []T
	generation uint64
}

// Registry is an in-memory index set over one collection.
type Registry[T models.Entity] struct {
	current atomic.Pointer[index[T]]
	parents ParentsFunc[T]
}

// New creates an empty registry. parents may be nil for kinds without a
// parent relation.
func New[T models.Entity](parents ParentsFunc[T]) *Registry[T] {
	r := &Registry[T]{parents: parents}
	r.current.Store(&index[T]{})
	return r
}

// Replace swaps every index for ones built from items and returns the new
// generation. items keeps its order; later duplicates of an id are ignored.
func (r *Registry[T]) Replace(items []T) uint64 {
	next := &index[T]{
		items:    make([]T, 0, len(items)),
		byID:     make(map[string]int, len(items)),
		byOwner:  make(map[string][]int),
		byParent: make(map[string][]int),
	}

	for _, item := range items {
		id := item.EntityID()
		if _, dup := next.byID[id]; dup {
			continue
		}
		pos := len(next.items)
		next.items = append(next.items, item)
		next.byID[id] = pos
		owner := item.EntityOwner()
		next.byOwner[owner] = append(next.byOwner[owner], pos)

		if r.parents == nil {
			continue
		}
		seen := make(map[string]struct{})
		for _, p := range r.parents(item) {
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			next.byParent[p] = append(next.byParent[p], pos)
		}
	}

	// generation растет монотонно даже при конкурентных Replace
	for {
		prev := r.current.Load()
		next.generation = prev.generation + 1
		if r.current.CompareAndSwap(prev, next) {
			return next.generation
		}
	}
}

// Clear drops every entity.
func (r *Registry[T]) Clear() uint64 {
	return r.Replace(nil)
}

// Generation returns the number of snapshots applied so far.
func (r *Registry[T]) Generation() uint64 {
	return r.current.Load().generation
}

// Len returns the number of entities in the current snapshot.
func (r *Registry[T]) Len() int {
	return len(r.current.Load().items)
}

// ByID looks up a single entity.
func (r *Registry[T]) ByID(id string) (T, bool) {
	idx := r.current.Load()
	pos, ok := idx.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return idx.items[pos], true
}

// All iterates the current snapshot in collection order.
func (r *Registry[T]) All() iter.Seq[T] {
	idx := r.current.Load()
	return func(yield func(T) bool) {
		for _, item := range idx.items {
			if !yield(item) {
				return
			}
		}
	}
}

// ByOwner iterates the entities owned by ownerID in collection order.
func (r *Registry[T]) ByOwner(ownerID string) iter.Seq[T] {
	idx := r.current.Load()
	return positions(idx, idx.byOwner[ownerID])
}

// ByParent iterates the entities indexed under parentID in collection order.
func (r *Registry[T]) ByParent(parentID string) iter.Seq[T] {
	idx := r.current.Load()
	return positions(idx, idx.byParent[parentID])
}

func positions[T models.Entity](idx *index[T], pos []int) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, p := range pos {
			if !yield(idx.items[p]) {
				return
			}
		}
	}
}
