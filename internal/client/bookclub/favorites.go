package bookclub

import (
	"context"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

// Favorites keeps the favorite books of the current reader.
type Favorites struct {
	service[models.Favorite]
}

// ToggleFavorite marks or unmarks a book and reports the new state.
func (f *Favorites) ToggleFavorite(ctx context.Context, bookID string) (mutation.Result, bool) {
	return f.store.TogglePresence(ctx, bookID, f.finder(bookID), mutation.Payload{"bookId": bookID})
}

// IsFavorite reports whether the book is a favorite of the current reader.
func (f *Favorites) IsFavorite(bookID string) bool {
	return f.store.Present(bookID, f.finder(bookID))
}

// MyFavorites returns the favorites of the current reader, newest first.
func (f *Favorites) MyFavorites() []models.Favorite {
	actorID := f.actorID()
	if actorID == "" {
		return nil
	}
	return f.byOwner(actorID)
}
