package bookclub

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iudanet/bookclub/internal/client/cache"
	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/client/storage"
	"github.com/iudanet/bookclub/internal/client/storage/boltdb"
	"github.com/iudanet/bookclub/internal/client/syncengine"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/internal/remote"
	"github.com/iudanet/bookclub/internal/remote/memory"
	"github.com/iudanet/bookclub/pkg/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeSession is a Session whose reader is switched by the test
type fakeSession struct {
	watchers map[int]func(models.Actor, bool)
	actor    models.Actor
	next     int
	mu       sync.Mutex
}

func newFakeSession() *fakeSession {
	return &fakeSession{watchers: make(map[int]func(models.Actor, bool))}
}

func (s *fakeSession) Current() (models.Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor, s.actor.ID != ""
}

func (s *fakeSession) Watch(fn func(models.Actor, bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *fakeSession) login(id, name string) {
	s.switchTo(models.Actor{ID: id, DisplayName: name})
}

func (s *fakeSession) logout() {
	s.switchTo(models.Actor{})
}

func (s *fakeSession) switchTo(actor models.Actor) {
	s.mu.Lock()
	s.actor = actor
	fns := make([]func(models.Actor, bool), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(actor, actor.ID != "")
	}
}

// sessionRemote writes to the in-memory backend as the current reader
func sessionRemote(backend *memory.Backend, session *fakeSession) *remote.StoreMock {
	as := func() *memory.Store {
		actor, _ := session.Current()
		return backend.As(actor.ID)
	}
	return &remote.StoreMock{
		SubscribeFunc: func(ctx context.Context, collection string, q api.Query) (<-chan remote.Event, error) {
			return as().Subscribe(ctx, collection, q)
		},
		CreateFunc: func(ctx context.Context, collection string, fields map[string]any) (string, error) {
			return as().Create(ctx, collection, fields)
		},
		UpdateFunc: func(ctx context.Context, collection, id string, patch api.Patch) error {
			return as().Update(ctx, collection, id, patch)
		},
		DeleteFunc: func(ctx context.Context, collection, id string) error {
			return as().Delete(ctx, collection, id)
		},
	}
}

type appFixture struct {
	backend *memory.Backend
	session *fakeSession
	store   *remote.StoreMock
	app     *App
}

func newAppFixture(t *testing.T, kv *boltdb.Storage) *appFixture {
	t.Helper()

	f := &appFixture{
		backend: memory.NewBackend(),
		session: newFakeSession(),
	}
	f.store = sessionRemote(f.backend, f.session)
	cfg := Config{
		Remote:  f.store,
		Session: f.session,
		Clock:   func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
	}
	if kv != nil {
		cfg.KV = kv
	}
	f.app = New(cfg)
	t.Cleanup(f.app.Stop)
	return f
}

func openKV(t *testing.T, path string) *boltdb.Storage {
	t.Helper()
	kv, err := boltdb.New(context.Background(), path)
	require.NoError(t, err)
	return kv
}

func requireOK(t *testing.T, res mutation.Result) string {
	t.Helper()
	require.NoError(t, res.Err)
	require.True(t, res.Success)
	return res.ID
}

func waitReady(t *testing.T, ready func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, ready(ctx))
}

func TestApp_CommunityScenario(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, nil)
	c := f.app.Comunidades

	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	waitReady(t, c.Store().WaitReady)

	id := requireOK(t, c.CreateComunidade(ctx, "SciFi", "Ficção científica"))
	require.Eventually(t, func() bool {
		_, ok := c.Comunidade(id)
		return ok
	}, waitFor, tick)

	created, _ := c.Comunidade(id)
	assert.Equal(t, "SciFi", created.Nome)
	assert.Equal(t, "ana", created.OwnerID)
	assert.Equal(t, []string{"ana"}, created.Membros)
	assert.True(t, c.IsMember(id))

	// владелец не может покинуть сообщество
	res := c.LeaveComunidade(ctx, id)
	assert.ErrorIs(t, res.Err, mutation.ErrForbidden)

	// другой читатель входит в приложение
	f.session.login("bia", "Bia")
	waitReady(t, c.Store().WaitReady)
	require.Eventually(t, func() bool {
		_, ok := c.Comunidade(id)
		return ok
	}, waitFor, tick)
	assert.False(t, c.IsMember(id))

	requireOK(t, c.JoinComunidade(ctx, id))
	assert.True(t, c.IsMember(id))
	require.Eventually(t, func() bool {
		return len(c.ComunidadesOf("bia")) == 1
	}, waitFor, tick)

	joined, _ := c.Comunidade(id)
	assert.True(t, joined.IsMember("bia"))
	assert.True(t, c.IsMember(id))
	assert.True(t, c.HasMember(id, "bia"))
	assert.True(t, c.HasMember(id, "ana"))
	assert.False(t, c.HasMember(id, "caio"))
	assert.False(t, c.HasMember(id, ""))

	// повторное вступление ничего не пишет
	requireOK(t, c.JoinComunidade(ctx, id))

	res = c.DeleteComunidade(ctx, id)
	assert.ErrorIs(t, res.Err, mutation.ErrForbidden)
	res = c.RemoveMember(ctx, id, "ana")
	assert.ErrorIs(t, res.Err, mutation.ErrForbidden)

	// владелец удаляет участника
	f.session.login("ana", "Ana")
	waitReady(t, c.Store().WaitReady)
	require.Eventually(t, func() bool {
		got, ok := c.Comunidade(id)
		return ok && got.IsMember("bia")
	}, waitFor, tick)

	requireOK(t, c.RemoveMember(ctx, id, "bia"))
	require.Eventually(t, func() bool {
		return len(c.ComunidadesOf("bia")) == 0
	}, waitFor, tick)
	assert.False(t, c.HasMember(id, "bia"))
	assert.True(t, c.HasMember(id, "ana"))

	requireOK(t, c.DeleteComunidade(ctx, id))
	require.Eventually(t, func() bool {
		return c.Store().Len() == 0
	}, waitFor, tick)
}

func TestApp_Reviews(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, nil)
	r := f.app.Reviews

	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	waitReady(t, r.Store().WaitReady)

	res := r.AddReview(ctx, ReviewInput{BookID: "b1", Rating: 6})
	assert.ErrorIs(t, res.Err, mutation.ErrValidation)
	assert.ErrorIs(t, res.Err, ErrRatingRange)

	id := requireOK(t, r.AddReview(ctx, ReviewInput{BookID: "b1", Rating: 4, Comment: "Ótimo"}))
	require.Eventually(t, func() bool {
		_, ok := r.MyReviewForBook("b1")
		return ok
	}, waitFor, tick)

	mine, _ := r.MyReviewForBook("b1")
	assert.Equal(t, id, mine.ID)
	assert.Equal(t, "Ana", mine.UserName)

	res = r.AddReview(ctx, ReviewInput{BookID: "b1", Rating: 2})
	assert.ErrorIs(t, res.Err, mutation.ErrDuplicateConflict)

	// пустой комментарий не затирает сохраненный
	requireOK(t, r.UpdateReview(ctx, id, 5, ""))
	require.Eventually(t, func() bool {
		got, _ := r.MyReviewForBook("b1")
		return got.Rating == 5
	}, waitFor, tick)
	got, _ := r.MyReviewForBook("b1")
	assert.Equal(t, "Ótimo", got.Comment)

	f.session.login("bia", "Bia")
	waitReady(t, r.Store().WaitReady)
	require.Eventually(t, func() bool { return r.Store().Len() == 1 }, waitFor, tick)

	requireOK(t, r.AddReview(ctx, ReviewInput{BookID: "b1", Rating: 2}))
	require.Eventually(t, func() bool { return len(r.ReviewsForBook("b1")) == 2 }, waitFor, tick)

	avg, n := r.AverageRating("b1")
	assert.Equal(t, 2, n)
	assert.InDelta(t, 3.5, avg, 0.001)
	assert.Len(t, r.ReviewsByUser("ana"), 1)

	res = r.DeleteReview(ctx, id)
	assert.ErrorIs(t, res.Err, mutation.ErrForbidden)

	// два быстрых нажатия: лайк и отмена
	_, liked := r.ToggleLike(ctx, id)
	assert.True(t, liked)
	assert.True(t, r.IsLiked(id))
	_, liked = r.ToggleLike(ctx, id)
	assert.False(t, liked)
	assert.False(t, r.IsLiked(id))

	require.Eventually(t, func() bool {
		doc, ok := f.backend.Document(CollectionReviews, id)
		return ok && doc.Fields["likes"] == float64(0)
	}, waitFor, tick)

	avg, n = r.AverageRating("missing")
	assert.Zero(t, avg)
	assert.Zero(t, n)
}

func TestApp_LogoutClearsActorScoped(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, nil)

	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	waitReady(t, f.app.Reviews.Store().WaitReady)
	waitReady(t, f.app.Livros.Store().WaitReady)
	waitReady(t, f.app.Eventos.Store().WaitReady)

	requireOK(t, f.app.Reviews.AddReview(ctx, ReviewInput{BookID: "b1", Rating: 5}))
	requireOK(t, f.app.Livros.AddLivro(ctx, LivroInput{Titulo: "Duna", Autor: "Frank Herbert", Paginas: 680}))
	require.Eventually(t, func() bool {
		return f.app.Reviews.Store().Len() == 1 && f.app.Livros.Store().Len() == 1
	}, waitFor, tick)

	f.session.logout()

	assert.Equal(t, 0, f.app.Reviews.Store().Len())
	assert.Equal(t, syncengine.StateUninitialized, f.app.Reviews.Store().State())
	assert.Len(t, f.app.Livros.AllLivros(), 1)
	assert.Equal(t, syncengine.StateReady, f.app.Livros.Store().State())

	states := f.app.States()
	assert.Len(t, states, 8)
	assert.Equal(t, syncengine.StateUninitialized, states[CollectionFavorites])
	assert.Equal(t, syncengine.StateReady, states[CollectionEventos])

	// без читателя запись невозможна
	res := f.app.Livros.AddLivro(ctx, LivroInput{Titulo: "Neuromancer", Autor: "William Gibson"})
	assert.ErrorIs(t, res.Err, mutation.ErrUnauthenticated)
}

func TestApp_LogoutForgetsReaderCache(t *testing.T) {
	ctx := context.Background()
	kv := openKV(t, filepath.Join(t.TempDir(), "client.db"))
	defer kv.Close()

	f := newAppFixture(t, kv)
	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	waitReady(t, f.app.Favorites.Store().WaitReady)
	waitReady(t, f.app.Livros.Store().WaitReady)

	requireOK(t, f.app.Livros.AddLivro(ctx, LivroInput{Titulo: "Duna", Autor: "Frank Herbert"}))
	res, _ := f.app.Favorites.ToggleFavorite(ctx, "b1")
	requireOK(t, res)

	cached := func(key string) bool {
		data, err := kv.Get(ctx, key)
		return err == nil && len(data) > 2
	}
	require.Eventually(t, func() bool { return cached(cache.Key(CollectionFavorites, "ana")) }, waitFor, tick)
	require.Eventually(t, func() bool { return cached(cache.Key(CollectionLivros, "")) }, waitFor, tick)

	f.session.logout()

	_, err := kv.Get(ctx, cache.Key(CollectionFavorites, "ana"))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
	assert.True(t, cached(cache.Key(CollectionLivros, "")), "public snapshot is shared and kept")
	assert.Empty(t, f.app.Favorites.MyFavorites())
}

func TestApp_OfflineFallback(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client.db")

	// первый запуск: данные приходят с сервера и сохраняются в кеш
	kv := openKV(t, path)
	f := newAppFixture(t, kv)
	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	waitReady(t, f.app.Livros.Store().WaitReady)

	requireOK(t, f.app.Livros.AddLivro(ctx, LivroInput{Titulo: "Duna", Autor: "Frank Herbert"}))
	requireOK(t, f.app.Livros.AddLivro(ctx, LivroInput{Titulo: "Fundação", Autor: "Isaac Asimov"}))
	require.Eventually(t, func() bool { return len(f.app.Livros.LivrosOf("ana")) == 2 }, waitFor, tick)

	f.app.Stop()
	require.NoError(t, kv.Close())

	// второй запуск: сервер недоступен, читатель не вошел
	kv = openKV(t, path)
	defer kv.Close()

	offline := &remote.StoreMock{
		SubscribeFunc: func(ctx context.Context, collection string, q api.Query) (<-chan remote.Event, error) {
			return nil, errors.New("connection refused")
		},
	}
	app := New(Config{Remote: offline, Session: newFakeSession(), KV: kv})
	defer app.Stop()

	err := app.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Len(t, app.Livros.LivrosOf("ana"), 2)
	assert.Equal(t, syncengine.StateUninitialized, app.Livros.Store().State())
	assert.Equal(t, 0, app.Reviews.Store().Len())
}

func TestApp_FavoritesAndProgress(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, nil)

	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	waitReady(t, f.app.Favorites.Store().WaitReady)
	waitReady(t, f.app.Progress.Store().WaitReady)

	fav := f.app.Favorites
	res, now := fav.ToggleFavorite(ctx, "")
	assert.ErrorIs(t, res.Err, mutation.ErrValidation)
	assert.False(t, now)
	assert.Empty(t, f.store.CreateCalls())

	_, now = fav.ToggleFavorite(ctx, "b1")
	assert.True(t, now)
	assert.True(t, fav.IsFavorite("b1"))
	require.Eventually(t, func() bool { return len(fav.MyFavorites()) == 1 }, waitFor, tick)

	_, now = fav.ToggleFavorite(ctx, "b1")
	assert.False(t, now)
	assert.False(t, fav.IsFavorite("b1"))
	require.Eventually(t, func() bool { return len(fav.MyFavorites()) == 0 }, waitFor, tick)

	p := f.app.Progress
	res = p.LogProgress(ctx, "b1", 120, 100)
	assert.ErrorIs(t, res.Err, ErrPageOutOfRange)

	requireOK(t, p.LogProgress(ctx, "b1", 10, 100))
	require.Eventually(t, func() bool {
		_, ok := p.ProgressFor("b1")
		return ok
	}, waitFor, tick)

	requireOK(t, p.LogProgress(ctx, "b1", 50, 100))
	require.Eventually(t, func() bool {
		got, _ := p.ProgressFor("b1")
		return got.PaginaAtual == 50
	}, waitFor, tick)

	got, _ := p.ProgressFor("b1")
	assert.Equal(t, 50, got.Percent())
	assert.Len(t, p.Reading(), 1)

	// чужой прогресс не попадает в выборку
	f.session.login("bia", "Bia")
	waitReady(t, p.Store().WaitReady)
	assert.Empty(t, p.Reading())
	assert.Equal(t, 0, p.Store().Len())
}

func TestApp_EventosCitacoesStickers(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, nil)

	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	waitReady(t, f.app.Eventos.Store().WaitReady)
	waitReady(t, f.app.Citacoes.Store().WaitReady)
	waitReady(t, f.app.Stickers.Store().WaitReady)

	e := f.app.Eventos
	res := e.CreateEvento(ctx, EventoInput{Titulo: "Sem data"})
	assert.ErrorIs(t, res.Err, mutation.ErrValidation)

	requireOK(t, e.CreateEvento(ctx, EventoInput{
		Titulo:      "Clube de leitura",
		Categoria:   "encontro",
		DataInicio:  time.Date(2026, 5, 3, 19, 0, 0, 0, time.UTC),
		Coordinates: &models.Coordinates{Latitude: -23.55, Longitude: -46.63},
	}))
	requireOK(t, e.CreateEvento(ctx, EventoInput{
		Titulo:     "Lançamento",
		Categoria:  "lancamento",
		DataInicio: time.Date(2026, 5, 2, 19, 0, 0, 0, time.UTC),
	}))
	require.Eventually(t, func() bool { return len(e.UpcomingEventos()) == 2 }, waitFor, tick)

	upcoming := e.UpcomingEventos()
	assert.Equal(t, "Lançamento", upcoming[0].Titulo)
	assert.Equal(t, "Clube de leitura", upcoming[1].Titulo)
	require.NotNil(t, upcoming[1].Coordinates)
	assert.InDelta(t, -23.55, upcoming[1].Coordinates.Latitude, 0.0001)
	assert.Len(t, e.EventosByCategoria("encontro"), 1)

	c := f.app.Citacoes
	res = c.AddCitacao(ctx, "b1", "", 3)
	assert.ErrorIs(t, res.Err, ErrRequired)
	res = c.AddCitacao(ctx, "b1", "texto", -1)
	assert.ErrorIs(t, res.Err, ErrNegative)

	qid := requireOK(t, c.AddCitacao(ctx, "b1", "Não há nada como o sonho", 12))
	require.Eventually(t, func() bool { return len(c.CitacoesForLivro("b1")) == 1 }, waitFor, tick)
	requireOK(t, c.UpdateCitacao(ctx, qid, "", 13))
	require.Eventually(t, func() bool {
		q := c.CitacoesForLivro("b1")
		return len(q) == 1 && q[0].Pagina == 13
	}, waitFor, tick)
	assert.Equal(t, "Não há nada como o sonho", c.CitacoesForLivro("b1")[0].Texto)

	s := f.app.Stickers
	first := requireOK(t, s.AddSticker(ctx, "https://img/1.png"))
	second := requireOK(t, s.AddSticker(ctx, "https://img/2.png"))
	require.Eventually(t, func() bool { return len(s.StickersOf("ana")) == 2 }, waitFor, tick)

	res = s.AddSticker(ctx, "https://img/1.png")
	assert.ErrorIs(t, res.Err, mutation.ErrDuplicateConflict)

	requireOK(t, s.SelectSticker(ctx, first))
	require.Eventually(t, func() bool {
		st, _ := s.Store().ByID(first)
		return st.Selected
	}, waitFor, tick)

	requireOK(t, s.SelectSticker(ctx, second))
	require.Eventually(t, func() bool {
		a, _ := s.Store().ByID(first)
		b, _ := s.Store().ByID(second)
		return !a.Selected && b.Selected
	}, waitFor, tick)

	requireOK(t, s.DeleteSticker(ctx, first))
	require.Eventually(t, func() bool { return len(s.StickersOf("ana")) == 1 }, waitFor, tick)
}

func TestApp_LivroDuplicateIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, nil)

	f.session.login("ana", "Ana")
	require.NoError(t, f.app.Start(ctx))
	l := f.app.Livros
	waitReady(t, l.Store().WaitReady)

	id := requireOK(t, l.AddLivro(ctx, LivroInput{Titulo: "Duna", Autor: "Frank Herbert"}))
	require.Eventually(t, func() bool { return l.Store().Len() == 1 }, waitFor, tick)

	res := l.AddLivro(ctx, LivroInput{Titulo: "  DUNA ", Autor: "frank herbert"})
	assert.ErrorIs(t, res.Err, mutation.ErrDuplicateConflict)

	res = l.AddLivro(ctx, LivroInput{Autor: "Sem título"})
	assert.ErrorIs(t, res.Err, ErrRequired)

	requireOK(t, l.UpdateLivro(ctx, id, LivroInput{Genero: "ficção"}))
	require.Eventually(t, func() bool {
		got, _ := l.Livro(id)
		return got.Genero == "ficção"
	}, waitFor, tick)
	got, _ := l.Livro(id)
	assert.Equal(t, "Duna", got.Titulo)

	// другой читатель может добавить ту же книгу
	f.session.login("bia", "Bia")
	requireOK(t, l.AddLivro(ctx, LivroInput{Titulo: "Duna", Autor: "Frank Herbert"}))

	res = l.DeleteLivro(ctx, id)
	assert.ErrorIs(t, res.Err, mutation.ErrForbidden)
}
