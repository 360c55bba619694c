package models

// Favorite marks a book as a favorite of its owner.
type Favorite struct {
	Envelope
	BookID string `json:"bookId"`
}
