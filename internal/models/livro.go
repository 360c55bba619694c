package models

// Livro представляет книгу в каталоге
type Livro struct {
	Envelope
	Titulo  string `json:"titulo"`
	Autor   string `json:"autor"`
	Genero  string `json:"genero"`
	Paginas int    `json:"paginas"`
}
