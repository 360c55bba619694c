package bookclub

import (
	"context"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

// Stickers manages the sticker collection of the current reader.
type Stickers struct {
	service[models.Sticker]
}

// AddSticker adds an image to the collection. The same image is kept once.
func (s *Stickers) AddSticker(ctx context.Context, imageURL string) mutation.Result {
	return s.store.Create(ctx, mutation.Payload{
		"imageUrl": imageURL,
		"selected": false,
	})
}

// DeleteSticker removes a sticker.
func (s *Stickers) DeleteSticker(ctx context.Context, id string) mutation.Result {
	return s.store.Delete(ctx, id)
}

// SelectSticker makes id the sticker shown on the profile and unselects the
// previous one.
func (s *Stickers) SelectSticker(ctx context.Context, id string) mutation.Result {
	res := s.store.Update(ctx, id, mutation.Payload{"selected": true})
	if !res.Success {
		return res
	}
	for st := range s.store.ByOwner(s.actorID()) {
		if st.Selected && st.ID != id {
			if r := s.store.Update(ctx, st.ID, mutation.Payload{"selected": false}); !r.Success {
				return r
			}
		}
	}
	return res
}

// StickersOf returns the stickers collected by ownerID.
func (s *Stickers) StickersOf(ownerID string) []models.Sticker {
	return s.byParent(ownerID)
}
