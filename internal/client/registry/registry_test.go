package registry

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookclub/internal/models"
)

func review(id, owner, book string) models.Review {
	return models.Review{
		Envelope: models.Envelope{ID: id, OwnerID: owner},
		BookID:   book,
	}
}

func reviewIDs(seq func(func(models.Review) bool)) []string {
	var out []string
	for r := range seq {
		out = append(out, r.ID)
	}
	return out
}

func newReviewRegistry() *Registry[models.Review] {
	return New(func(r models.Review) []string { return []string{r.BookID} })
}

func TestRegistry_Indices(t *testing.T) {
	r := newReviewRegistry()
	assert.Equal(t, uint64(0), r.Generation())
	assert.Equal(t, 0, r.Len())

	gen := r.Replace([]models.Review{
		review("r1", "u1", "b1"),
		review("r2", "u2", "b1"),
		review("r3", "u1", "b2"),
		review("r1", "u9", "b9"), // дубликат id игнорируется
	})
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, 3, r.Len())

	got, ok := r.ByID("r2")
	require.True(t, ok)
	assert.Equal(t, "u2", got.OwnerID)

	_, ok = r.ByID("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"r1", "r3"}, reviewIDs(r.ByOwner("u1")))
	assert.Equal(t, []string{"r1", "r2"}, reviewIDs(r.ByParent("b1")))
	assert.Equal(t, []string{"r1", "r2", "r3"}, reviewIDs(r.All()))
	assert.Empty(t, reviewIDs(r.ByParent("b9")))
}

func TestRegistry_ReplaceDoesNotMerge(t *testing.T) {
	r := newReviewRegistry()
	r.Replace([]models.Review{review("r1", "u1", "b1"), review("r2", "u1", "b1")})
	r.Replace([]models.Review{review("r3", "u2", "b2")})

	_, ok := r.ByID("r1")
	assert.False(t, ok)
	assert.Empty(t, reviewIDs(r.ByOwner("u1")))
	assert.Equal(t, []string{"r3"}, reviewIDs(r.All()))

	gen := r.Clear()
	assert.Equal(t, uint64(3), gen)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_MultiParent(t *testing.T) {
	r := New(func(c models.Comunidade) []string { return c.Membros })
	r.Replace([]models.Comunidade{
		{Envelope: models.Envelope{ID: "c1", OwnerID: "u1"}, Membros: []string{"u1", "u2", "u2", ""}},
		{Envelope: models.Envelope{ID: "c2", OwnerID: "u2"}, Membros: []string{"u2"}},
	})

	var ids []string
	for c := range r.ByParent("u2") {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"c1", "c2"}, ids)
	assert.Empty(t, slices.Collect(r.ByParent("")))
}

func TestRegistry_ViewIsRestartableAndStable(t *testing.T) {
	r := newReviewRegistry()
	r.Replace([]models.Review{review("r1", "u1", "b1"), review("r2", "u1", "b1")})

	view := r.ByParent("b1")
	r.Replace(nil)

	// view привязан к снапшоту, взятому при вызове
	assert.Equal(t, []string{"r1", "r2"}, reviewIDs(view))
	assert.Equal(t, []string{"r1", "r2"}, reviewIDs(view))

	// ранний выход из итерации
	for range view {
		break
	}
}

func TestRegistry_ConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	r := newReviewRegistry()

	snapshot := func(n int) []models.Review {
		out := make([]models.Review, 0, 10)
		for i := range 10 {
			out = append(out, review(fmt.Sprintf("s%d-%d", n, i), "u1", "b1"))
		}
		return out
	}
	r.Replace(snapshot(0))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 100)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				ids := reviewIDs(r.ByParent("b1"))
				if len(ids) != 10 {
					errs <- fmt.Sprintf("partial snapshot of %d", len(ids))
					return
				}
				prefix := ids[0][:3]
				for _, id := range ids {
					if id[:3] != prefix {
						errs <- "mixed snapshot " + prefix + " " + id
						return
					}
				}
			}
		}()
	}

	for n := 1; n < 200; n++ {
		r.Replace(snapshot(n % 10))
	}
	close(stop)
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}
