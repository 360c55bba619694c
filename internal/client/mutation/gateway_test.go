package mutation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookclub/internal/client/registry"
	"github.com/iudanet/bookclub/internal/document"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/remote"
	"github.com/iudanet/bookclub/internal/remote/memory"
	"github.com/iudanet/bookclub/pkg/api"
)

var likes = Relation[models.Review]{
	Name:     "like",
	Field:    "likedBy",
	Contains: models.Review.LikedByActor,
}

type gatewayFixture struct {
	backend  *memory.Backend
	registry *registry.Registry[models.Review]
	store    *remote.StoreMock
	actor    models.Actor
	gateway  *Gateway[models.Review]
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	f := &gatewayFixture{
		backend:  memory.NewBackend(),
		registry: registry.New(func(r models.Review) []string { return []string{r.BookID} }),
		actor:    models.Actor{ID: "u1", DisplayName: "Ana"},
	}

	// StoreMock делегирует в память, но пишет от имени текущего актора
	f.store = &remote.StoreMock{
		CreateFunc: func(ctx context.Context, collection string, fields map[string]any) (string, error) {
			return f.backend.As(f.actor.ID).Create(ctx, collection, fields)
		},
		UpdateFunc: func(ctx context.Context, collection, id string, patch api.Patch) error {
			return f.backend.As(f.actor.ID).Update(ctx, collection, id, patch)
		},
		DeleteFunc: func(ctx context.Context, collection, id string) error {
			return f.backend.As(f.actor.ID).Delete(ctx, collection, id)
		},
	}

	actors := &ActorsMock{
		CurrentFunc: func() (models.Actor, bool) {
			return f.actor, f.actor.ID != ""
		},
	}

	rules := Rules[models.Review]{
		Collection: "reviews",
		Validate: func(p Payload) error {
			if r, _ := p["rating"].(int); r < 1 || r > 5 {
				return errors.New("rating must be between 1 and 5")
			}
			return nil
		},
		UniqueKey: func(r models.Review) string { return r.BookID },
		PayloadKey: func(p Payload) string {
			s, _ := p["bookId"].(string)
			return s
		},
	}
	f.gateway = New(rules, f.store, actors, f.registry, nil)
	return f
}

// refresh загружает текущее состояние коллекции в реестр, как это сделал бы снапшот
func (f *gatewayFixture) refresh(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := f.backend.As("").Subscribe(ctx, "reviews", api.Query{})
	require.NoError(t, err)
	ev := <-events
	require.NoError(t, ev.Err)

	items := make([]models.Review, 0, len(ev.Snapshot.Documents))
	for _, doc := range ev.Snapshot.Documents {
		r, err := document.Decode[models.Review](doc)
		require.NoError(t, err)
		items = append(items, r)
	}
	gen := f.registry.Replace(items)
	f.gateway.Applied(gen)
}

func (f *gatewayFixture) as(id string) {
	f.actor = models.Actor{ID: id}
}

func TestGateway_Create(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)

	res := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 5, "comment": ""})
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ID)

	// пустые поля не отправляются
	require.Len(t, f.store.CreateCalls(), 1)
	assert.Equal(t, map[string]any{"bookId": "b1", "rating": 5}, f.store.CreateCalls()[0].Fields)

	// мутация не меняет реестр сама по себе
	_, found := f.registry.ByID(res.ID)
	assert.False(t, found)

	f.refresh(t)
	got, found := f.registry.ByID(res.ID)
	require.True(t, found)
	assert.Equal(t, "u1", got.OwnerID)
}

func TestGateway_CreateRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		payload Payload
		wantErr error
		name    string
		actor   string
	}{
		{name: "no actor", actor: "", payload: Payload{"bookId": "b1", "rating": 5}, wantErr: ErrUnauthenticated},
		{name: "invalid rating", actor: "u1", payload: Payload{"bookId": "b1", "rating": 9}, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t)
			f.as(tt.actor)

			res := f.gateway.Create(ctx, tt.payload)
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.Empty(t, f.store.CreateCalls())
		})
	}
}

func TestGateway_UniquenessGuard(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)

	first := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 4})
	require.True(t, first.Success)
	f.refresh(t)

	second := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 2})
	assert.ErrorIs(t, second.Err, ErrDuplicateConflict)
	assert.Len(t, f.store.CreateCalls(), 1, "no remote write on conflict")

	// другой актор может оставить свой отзыв
	f.as("u2")
	other := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 3})
	require.True(t, other.Success)

	// после снапшота без первого отзыва создание снова разрешено
	f.as("u1")
	require.True(t, f.gateway.Delete(ctx, first.ID).Success)
	f.refresh(t)

	third := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 2})
	assert.True(t, third.Success)
}

func TestGateway_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)

	created := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 4, "comment": "ok"})
	require.True(t, created.Success)
	f.refresh(t)

	t.Run("sanitized update", func(t *testing.T) {
		res := f.gateway.Update(ctx, created.ID, Payload{"comment": "", "rating": 5})
		require.NoError(t, res.Err)
		calls := f.store.UpdateCalls()
		require.NotEmpty(t, calls)
		assert.Equal(t, map[string]any{"rating": 5}, calls[len(calls)-1].Patch.Set)
	})

	t.Run("empty update", func(t *testing.T) {
		res := f.gateway.Update(ctx, created.ID, Payload{"comment": ""})
		assert.ErrorIs(t, res.Err, ErrValidation)
	})

	t.Run("not found", func(t *testing.T) {
		assert.ErrorIs(t, f.gateway.Update(ctx, "missing", Payload{"rating": 1}).Err, ErrNotFound)
		assert.ErrorIs(t, f.gateway.Delete(ctx, "missing").Err, ErrNotFound)
	})

	t.Run("non owner", func(t *testing.T) {
		f.as("u2")
		defer f.as("u1")

		before := len(f.store.UpdateCalls())
		assert.ErrorIs(t, f.gateway.Update(ctx, created.ID, Payload{"rating": 1}).Err, ErrForbidden)
		assert.ErrorIs(t, f.gateway.Delete(ctx, created.ID).Err, ErrForbidden)
		assert.Len(t, f.store.UpdateCalls(), before)
		assert.Empty(t, f.store.DeleteCalls())
	})

	t.Run("owner delete", func(t *testing.T) {
		res := f.gateway.Delete(ctx, created.ID)
		require.NoError(t, res.Err)
		_, found := f.backend.Document("reviews", created.ID)
		assert.False(t, found)
	})
}

func TestGateway_ToggleDoubleClickNetsZero(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)

	created := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 4})
	require.True(t, created.Success)
	f.refresh(t)

	f.as("u2")
	res, now := f.gateway.Toggle(ctx, created.ID, likes)
	require.NoError(t, res.Err)
	assert.True(t, now)
	assert.True(t, f.gateway.Related(created.ID, likes))

	// второй клик до прихода снапшота
	res, now = f.gateway.Toggle(ctx, created.ID, likes)
	require.NoError(t, res.Err)
	assert.False(t, now)

	calls := f.store.UpdateCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, map[string][]string{"likedBy": {"u2"}}, calls[0].Patch.ArrayUnion)
	assert.Empty(t, calls[0].Patch.Increment)
	assert.Equal(t, map[string][]string{"likedBy": {"u2"}}, calls[1].Patch.ArrayRemove)
	assert.Empty(t, calls[1].Patch.Increment)

	doc, found := f.backend.Document("reviews", created.ID)
	require.True(t, found)
	assert.EqualValues(t, 0, doc.Fields["likes"])
	assert.Empty(t, doc.Fields["likedBy"])

	f.refresh(t)
	assert.False(t, f.gateway.Related(created.ID, likes))
}

func TestGateway_ToggleFailureRevertsOverlay(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)

	created := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 4})
	require.True(t, created.Success)
	f.refresh(t)

	f.store.UpdateFunc = func(ctx context.Context, collection, id string, patch api.Patch) error {
		return errors.New("connection reset")
	}

	f.as("u2")
	res, _ := f.gateway.Toggle(ctx, created.ID, likes)
	assert.ErrorIs(t, res.Err, ErrTransport)
	assert.False(t, f.gateway.Related(created.ID, likes))
}

func TestGateway_OwnerLockedRelation(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)

	members := Relation[models.Review]{
		Name:        "members",
		Field:       "likedBy",
		OwnerLocked: true,
		Contains: func(r models.Review, actorID string) bool {
			return r.OwnerID == actorID || r.LikedByActor(actorID)
		},
	}

	created := f.gateway.Create(ctx, Payload{"bookId": "b1", "rating": 4})
	require.True(t, created.Success)
	f.refresh(t)

	// владелец не может выйти
	assert.ErrorIs(t, f.gateway.SetRelation(ctx, created.ID, members, false).Err, ErrForbidden)
	res, _ := f.gateway.Toggle(ctx, created.ID, members)
	assert.ErrorIs(t, res.Err, ErrForbidden)
	// и уже является участником: запись не нужна
	assert.True(t, f.gateway.SetRelation(ctx, created.ID, members, true).Success)
	assert.Empty(t, f.store.UpdateCalls())

	f.as("u2")
	require.True(t, f.gateway.SetRelation(ctx, created.ID, members, true).Success)
	require.True(t, f.gateway.SetRelation(ctx, created.ID, members, true).Success)
	assert.Len(t, f.store.UpdateCalls(), 1, "repeated join is a no-op")

	// удалять участников может только владелец
	assert.ErrorIs(t, f.gateway.RemoveMember(ctx, created.ID, members, "u3").Err, ErrForbidden)

	f.as("u1")
	assert.ErrorIs(t, f.gateway.RemoveMember(ctx, created.ID, members, "u1").Err, ErrForbidden)
	require.True(t, f.gateway.RemoveMember(ctx, created.ID, members, "u2").Success)

	doc, _ := f.backend.Document("reviews", created.ID)
	assert.Empty(t, doc.Fields["likedBy"])
}

func TestGateway_TogglePresence(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)

	find := func(actorID string) (models.Review, bool) {
		for r := range f.registry.ByOwner(actorID) {
			if r.BookID == "b7" {
				return r, true
			}
		}
		return models.Review{}, false
	}
	payload := Payload{"bookId": "b7", "rating": 3}

	res, now := f.gateway.TogglePresence(ctx, "b7", find, payload)
	require.NoError(t, res.Err)
	assert.True(t, now)
	assert.True(t, f.gateway.Present("b7", find))

	// двойной клик: удаляется только что созданный документ
	res, now = f.gateway.TogglePresence(ctx, "b7", find, payload)
	require.NoError(t, res.Err)
	assert.False(t, now)
	require.Len(t, f.store.DeleteCalls(), 1)
	assert.Equal(t, "reviews", f.store.CreateCalls()[0].Collection)

	f.refresh(t)
	assert.False(t, f.gateway.Present("b7", find))
	assert.Equal(t, 0, f.registry.Len())
}

func TestGateway_TogglePresenceValidatesFirst(t *testing.T) {
	ctx := context.Background()
	find := func(string) (models.Review, bool) { return models.Review{}, false }

	tests := []struct {
		name    string
		key     string
		payload Payload
	}{
		{name: "rule rejects payload", key: "b1", payload: Payload{"bookId": "b1", "rating": 0}},
		{name: "empty key", key: "", payload: Payload{"bookId": "", "rating": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t)

			res, now := f.gateway.TogglePresence(ctx, tt.key, find, tt.payload)
			assert.False(t, res.Success)
			assert.False(t, now)
			assert.ErrorIs(t, res.Err, ErrValidation)
			assert.Empty(t, f.store.CreateCalls())
			assert.False(t, f.gateway.Present(tt.key, find))
		})
	}
}

func TestGateway_PanickingRuleBecomesResult(t *testing.T) {
	f := newGatewayFixture(t)
	f.gateway.rules.Validate = func(Payload) error { panic("boom") }

	var res Result
	assert.NotPanics(t, func() {
		res = f.gateway.Create(context.Background(), Payload{"bookId": "b1"})
	})
	assert.False(t, res.Success)
	assert.True(t, strings.Contains(res.Err.Error(), "boom"))
}
