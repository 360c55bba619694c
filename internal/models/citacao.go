package models

// Citacao представляет цитату из книги, сохраненную читателем
type Citacao struct {
	Envelope
	Texto   string `json:"texto"`
	LivroID string `json:"livroId"`
	Pagina  int    `json:"pagina"`
}
