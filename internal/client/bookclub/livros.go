package bookclub

import (
	"context"
	"slices"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

// LivroInput are the editable fields of a book.
type LivroInput struct {
	Titulo  string
	Autor   string
	Genero  string
	Paginas int
}

// Livros manages the shared book catalogue.
type Livros struct {
	service[models.Livro]
}

// AddLivro adds a book. A reader cannot add the same title and author twice.
func (l *Livros) AddLivro(ctx context.Context, in LivroInput) mutation.Result {
	return l.store.Create(ctx, mutation.Payload{
		"titulo":  in.Titulo,
		"autor":   in.Autor,
		"genero":  in.Genero,
		"paginas": in.Paginas,
	})
}

// UpdateLivro changes a book added by the current reader. Empty text fields
// and a zero page count stay as they are.
func (l *Livros) UpdateLivro(ctx context.Context, id string, in LivroInput) mutation.Result {
	payload := mutation.Payload{
		"titulo": in.Titulo,
		"autor":  in.Autor,
		"genero": in.Genero,
	}
	if in.Paginas != 0 {
		payload["paginas"] = in.Paginas
	}
	return l.store.Update(ctx, id, payload)
}

// DeleteLivro removes a book added by the current reader.
func (l *Livros) DeleteLivro(ctx context.Context, id string) mutation.Result {
	return l.store.Delete(ctx, id)
}

// Livro looks a book up by id.
func (l *Livros) Livro(id string) (models.Livro, bool) {
	return l.store.ByID(id)
}

// LivrosOf returns the books added by ownerID.
func (l *Livros) LivrosOf(ownerID string) []models.Livro {
	return l.byParent(ownerID)
}

// AllLivros returns the whole catalogue, newest first.
func (l *Livros) AllLivros() []models.Livro {
	return slices.Collect(l.store.All())
}
