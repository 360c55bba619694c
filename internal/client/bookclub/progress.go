package bookclub

import (
	"context"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

// Progress keeps how far the current reader is in each book.
type Progress struct {
	service[models.Progresso]
}

// LogProgress records the current page of a book. The first call for a book
// creates the record, later calls update it.
func (p *Progress) LogProgress(ctx context.Context, livroID string, paginaAtual, totalPaginas int) mutation.Result {
	payload := mutation.Payload{
		"livroId":      livroID,
		"paginaAtual":  paginaAtual,
		"totalPaginas": totalPaginas,
	}
	if existing, ok := p.mine(livroID); ok {
		delete(payload, "livroId")
		return p.store.Update(ctx, existing.ID, payload)
	}
	return p.store.Create(ctx, payload)
}

// ProgressFor returns the current reader's progress in a book.
func (p *Progress) ProgressFor(livroID string) (models.Progresso, bool) {
	return p.mine(livroID)
}

// Reading returns every book the current reader has progress for.
func (p *Progress) Reading() []models.Progresso {
	actorID := p.actorID()
	if actorID == "" {
		return nil
	}
	return p.byOwner(actorID)
}
