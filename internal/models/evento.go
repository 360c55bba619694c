package models

import "time"

// Coordinates is a geographic point. Rendering maps is out of scope; the
// point is stored as-is.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Evento представляет литературное событие (встреча клуба, презентация книги)
type Evento struct {
	Envelope
	DataInicio  time.Time    `json:"dataInicio"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Titulo      string       `json:"titulo"`
	Local       string       `json:"local"`
	Categoria   string       `json:"categoria"`
	Descricao   string       `json:"descricao"`
}
