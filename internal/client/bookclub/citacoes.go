package bookclub

import (
	"context"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

// Citacoes manages the quotes a reader saves from books.
type Citacoes struct {
	service[models.Citacao]
}

// AddCitacao saves a quote.
func (c *Citacoes) AddCitacao(ctx context.Context, livroID, texto string, pagina int) mutation.Result {
	return c.store.Create(ctx, mutation.Payload{
		"livroId": livroID,
		"texto":   texto,
		"pagina":  pagina,
	})
}

// UpdateCitacao sets the page of a quote and replaces its text unless texto
// is empty.
func (c *Citacoes) UpdateCitacao(ctx context.Context, id, texto string, pagina int) mutation.Result {
	return c.store.Update(ctx, id, mutation.Payload{
		"texto":  texto,
		"pagina": pagina,
	})
}

// DeleteCitacao removes a quote.
func (c *Citacoes) DeleteCitacao(ctx context.Context, id string) mutation.Result {
	return c.store.Delete(ctx, id)
}

// CitacoesForLivro returns the saved quotes of a book, newest first.
func (c *Citacoes) CitacoesForLivro(livroID string) []models.Citacao {
	return c.byParent(livroID)
}
