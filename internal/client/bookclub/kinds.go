package bookclub

import (
	"strings"
	"time"

	"github.com/iudanet/bookclub/internal/client/collection"
	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/pkg/api"
)

// Remote collection names
const (
	CollectionReviews     = "reviews"
	CollectionComunidades = "comunidades"
	CollectionEventos     = "eventos"
	CollectionCitacoes    = "citacoes"
	CollectionFavorites   = "favorites"
	CollectionLivros      = "livros"
	CollectionStickers    = "stickers"
	CollectionProgress    = "progress"
)

func newestFirst(time.Time, string) api.Query {
	return api.Query{OrderBy: models.FieldCreatedAt, Descending: true}
}

// ownNewestFirst показывает читателю только его собственные документы
func ownNewestFirst(_ time.Time, actorID string) api.Query {
	return api.Query{
		Filters:    []api.Filter{{Field: models.FieldOwnerID, Op: api.OpEqual, Value: actorID}},
		OrderBy:    models.FieldCreatedAt,
		Descending: true,
	}
}

func reviewKind() collection.Kind[models.Review] {
	return collection.Kind[models.Review]{
		Collection: CollectionReviews,
		Scope:      collection.ScopeActor,
		Query:      newestFirst,
		Parents:    func(r models.Review) []string { return []string{r.BookID} },
		UniqueKey:  func(r models.Review) string { return r.BookID },
		PayloadKey: func(p mutation.Payload) string { return stringField(p, "bookId") },
		Validate:   validateReview,
		ValidateUpdate: func(_ models.Review, p mutation.Payload) error {
			return validateRatingIfSet(p)
		},
	}
}

func comunidadeKind() collection.Kind[models.Comunidade] {
	return collection.Kind[models.Comunidade]{
		Collection: CollectionComunidades,
		Scope:      collection.ScopeActor,
		Query:      newestFirst,
		// индекс по участникам: ByParent(actorID) дает сообщества читателя
		Parents: func(c models.Comunidade) []string {
			return append([]string{c.OwnerID}, c.Membros...)
		},
		Validate: func(p mutation.Payload) error {
			return requireText(p, "nome")
		},
		ValidateUpdate: func(_ models.Comunidade, p mutation.Payload) error {
			if _, ok := p["membros"]; ok {
				return errMembersReadOnly
			}
			return nil
		},
	}
}

func eventoKind() collection.Kind[models.Evento] {
	return collection.Kind[models.Evento]{
		Collection: CollectionEventos,
		Scope:      collection.ScopePublic,
		Query: func(now time.Time, _ string) api.Query {
			return api.Query{
				Filters: []api.Filter{{Field: "dataInicio", Op: api.OpGreaterEqual, Value: formatTime(startOfDay(now))}},
				OrderBy: "dataInicio",
			}
		},
		Parents:  func(e models.Evento) []string { return []string{e.Categoria} },
		Validate: validateEvento,
	}
}

func citacaoKind() collection.Kind[models.Citacao] {
	return collection.Kind[models.Citacao]{
		Collection: CollectionCitacoes,
		Scope:      collection.ScopeActor,
		Query:      ownNewestFirst,
		Parents:    func(c models.Citacao) []string { return []string{c.LivroID} },
		Validate:   validateCitacao,
		ValidateUpdate: func(_ models.Citacao, p mutation.Payload) error {
			return validatePagina(p)
		},
	}
}

func favoriteKind() collection.Kind[models.Favorite] {
	return collection.Kind[models.Favorite]{
		Collection: CollectionFavorites,
		Scope:      collection.ScopeActor,
		Query:      ownNewestFirst,
		Parents:    func(f models.Favorite) []string { return []string{f.BookID} },
		UniqueKey:  func(f models.Favorite) string { return f.BookID },
		PayloadKey: func(p mutation.Payload) string { return stringField(p, "bookId") },
		Validate: func(p mutation.Payload) error {
			return requireText(p, "bookId")
		},
	}
}

func livroKind() collection.Kind[models.Livro] {
	return collection.Kind[models.Livro]{
		Collection: CollectionLivros,
		Scope:      collection.ScopePublic,
		Query:      newestFirst,
		Parents:    func(l models.Livro) []string { return []string{l.OwnerID} },
		UniqueKey:  func(l models.Livro) string { return livroKey(l.Titulo, l.Autor) },
		PayloadKey: func(p mutation.Payload) string {
			return livroKey(stringField(p, "titulo"), stringField(p, "autor"))
		},
		Validate: validateLivro,
		ValidateUpdate: func(_ models.Livro, p mutation.Payload) error {
			return validateNonNegative(p, "paginas")
		},
	}
}

func stickerKind() collection.Kind[models.Sticker] {
	return collection.Kind[models.Sticker]{
		Collection: CollectionStickers,
		Scope:      collection.ScopeActor,
		Query:      ownNewestFirst,
		Parents:    func(s models.Sticker) []string { return []string{s.OwnerID} },
		UniqueKey:  func(s models.Sticker) string { return s.ImageURL },
		PayloadKey: func(p mutation.Payload) string { return stringField(p, "imageUrl") },
		Validate: func(p mutation.Payload) error {
			return requireText(p, "imageUrl")
		},
	}
}

func progressKind() collection.Kind[models.Progresso] {
	return collection.Kind[models.Progresso]{
		Collection: CollectionProgress,
		Scope:      collection.ScopeActor,
		Query:      ownNewestFirst,
		Parents:    func(p models.Progresso) []string { return []string{p.LivroID} },
		UniqueKey:  func(p models.Progresso) string { return p.LivroID },
		PayloadKey: func(p mutation.Payload) string { return stringField(p, "livroId") },
		Validate:   validateProgress,
		ValidateUpdate: func(_ models.Progresso, p mutation.Payload) error {
			return validatePages(p)
		},
	}
}

// livroKey сравнивает книги без учета регистра и пробелов по краям
func livroKey(titulo, autor string) string {
	titulo = strings.ToLower(strings.TrimSpace(titulo))
	autor = strings.ToLower(strings.TrimSpace(autor))
	if titulo == "" {
		return ""
	}
	return titulo + "\x00" + autor
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// formatTime хранит даты строками RFC3339 в UTC, чтобы фильтры сравнивали их лексически
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
