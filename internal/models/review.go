package models

// Review представляет отзыв читателя о книге
type Review struct {
	Envelope
	BookID   string   `json:"bookId"`   // ID книги, к которой относится отзыв
	Comment  string   `json:"comment"`  // текст отзыва
	UserName string   `json:"userName"` // имя автора на момент публикации
	LikedBy  []string `json:"likedBy"`  // кто поставил лайк
	Rating   int      `json:"rating"`   // оценка 1..5
	Likes    int64    `json:"likes"`    // число лайков, сервер держит равным len(LikedBy)
}

// LikedByActor reports whether actorID has liked the review.
func (r Review) LikedByActor(actorID string) bool {
	return containsString(r.LikedBy, actorID)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
