package bookclub

import (
	"context"
	"time"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

// EventoInput are the editable fields of an event.
type EventoInput struct {
	DataInicio  time.Time
	Coordinates *models.Coordinates
	Titulo      string
	Local       string
	Categoria   string
	Descricao   string
}

func (in EventoInput) payload() mutation.Payload {
	p := mutation.Payload{
		"titulo":    in.Titulo,
		"local":     in.Local,
		"categoria": in.Categoria,
		"descricao": in.Descricao,
	}
	if !in.DataInicio.IsZero() {
		p["dataInicio"] = formatTime(in.DataInicio)
	}
	if in.Coordinates != nil {
		p["coordinates"] = map[string]any{
			"latitude":  in.Coordinates.Latitude,
			"longitude": in.Coordinates.Longitude,
		}
	}
	return p
}

// Eventos manages literary events. Events are public.
type Eventos struct {
	service[models.Evento]
	clock func() time.Time
}

// CreateEvento publishes an event organised by the current reader.
func (e *Eventos) CreateEvento(ctx context.Context, in EventoInput) mutation.Result {
	return e.store.Create(ctx, in.payload())
}

// UpdateEvento changes an event. Empty fields stay as they are.
func (e *Eventos) UpdateEvento(ctx context.Context, id string, in EventoInput) mutation.Result {
	return e.store.Update(ctx, id, in.payload())
}

// DeleteEvento removes an event organised by the current reader.
func (e *Eventos) DeleteEvento(ctx context.Context, id string) mutation.Result {
	return e.store.Delete(ctx, id)
}

// UpcomingEventos returns the events starting today or later, soonest first.
func (e *Eventos) UpcomingEventos() []models.Evento {
	from := startOfDay(e.clock())
	var out []models.Evento
	for ev := range e.store.All() {
		if !ev.DataInicio.Before(from) {
			out = append(out, ev)
		}
	}
	return out
}

// EventosByCategoria returns the events of one category, soonest first.
func (e *Eventos) EventosByCategoria(categoria string) []models.Evento {
	return e.byParent(categoria)
}
