package bookclub

import (
	"context"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

var likeRelation = mutation.Relation[models.Review]{
	Name:     "like",
	Field:    "likedBy",
	Contains: models.Review.LikedByActor,
}

// ReviewInput are the editable fields of a review.
type ReviewInput struct {
	BookID  string
	Comment string
	Rating  int
}

// Reviews manages book reviews. A reader reviews a book at most once.
type Reviews struct {
	service[models.Review]
}

// AddReview publishes a review of the current reader.
func (r *Reviews) AddReview(ctx context.Context, in ReviewInput) mutation.Result {
	payload := mutation.Payload{
		"bookId":  in.BookID,
		"rating":  in.Rating,
		"comment": in.Comment,
		"likes":   0,
	}
	if actor, ok := r.actors.Current(); ok {
		payload["userName"] = actor.DisplayName
	}
	return r.store.Create(ctx, payload)
}

// UpdateReview changes rating and comment. Empty fields stay as they are.
func (r *Reviews) UpdateReview(ctx context.Context, id string, rating int, comment string) mutation.Result {
	payload := mutation.Payload{"comment": comment}
	if rating != 0 {
		payload["rating"] = rating
	}
	return r.store.Update(ctx, id, payload)
}

// DeleteReview removes a review of the current reader.
func (r *Reviews) DeleteReview(ctx context.Context, id string) mutation.Result {
	return r.store.Delete(ctx, id)
}

// ToggleLike likes or unlikes a review and reports the new state.
func (r *Reviews) ToggleLike(ctx context.Context, id string) (mutation.Result, bool) {
	return r.store.Toggle(ctx, id, likeRelation)
}

// IsLiked reports whether the current reader likes the review.
func (r *Reviews) IsLiked(id string) bool {
	return r.store.Related(id, likeRelation)
}

// ReviewsForBook returns the reviews of a book, newest first.
func (r *Reviews) ReviewsForBook(bookID string) []models.Review {
	return r.byParent(bookID)
}

// ReviewsByUser returns the reviews written by userID, newest first.
func (r *Reviews) ReviewsByUser(userID string) []models.Review {
	return r.byOwner(userID)
}

// MyReviewForBook returns the current reader's review of a book.
func (r *Reviews) MyReviewForBook(bookID string) (models.Review, bool) {
	return r.mine(bookID)
}

// AverageRating returns the mean rating of a book and the number of
// reviews it is based on.
func (r *Reviews) AverageRating(bookID string) (float64, int) {
	var sum, n int
	for review := range r.store.ByParent(bookID) {
		sum += review.Rating
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sum) / float64(n), n
}
