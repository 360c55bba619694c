package models

// Sticker is an image a reader collected; Selected marks the one shown on
// the profile.
type Sticker struct {
	Envelope
	ImageURL string `json:"imageUrl"`
	Selected bool   `json:"selected"`
}
