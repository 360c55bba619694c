package models

// Progresso представляет прогресс чтения книги читателем
type Progresso struct {
	Envelope
	LivroID      string `json:"livroId"`
	PaginaAtual  int    `json:"paginaAtual"`
	TotalPaginas int    `json:"totalPaginas"`
}

// Percent returns reading progress in the range 0..100.
func (p Progresso) Percent() int {
	if p.TotalPaginas <= 0 {
		return 0
	}
	pct := p.PaginaAtual * 100 / p.TotalPaginas
	if pct > 100 {
		return 100
	}
	return pct
}
