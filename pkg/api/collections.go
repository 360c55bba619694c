package api

import "time"

// Document is one row of a collection as it travels over the wire.
// ID, OwnerID, CreatedAt and UpdatedAt are assigned by the server.
type Document struct {
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Fields    map[string]any `json:"fields"`
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
}

// Filter operators understood by the server and the in-memory store.
const (
	OpEqual         = "=="
	OpNotEqual      = "!="
	OpLess          = "<"
	OpLessEqual     = "<="
	OpGreater       = ">"
	OpGreaterEqual  = ">="
	OpArrayContains = "array-contains"
)

// Filter is a single field predicate of a Query.
type Filter struct {
	Value any    `json:"value"`
	Field string `json:"field"`
	Op    string `json:"op"`
}

// Query selects and orders documents of one collection.
// Filters are ANDed. An empty OrderBy keeps createdAt descending.
type Query struct {
	OrderBy    string   `json:"orderBy,omitempty"`
	Filters    []Filter `json:"filters,omitempty"`
	Descending bool     `json:"descending,omitempty"`
}

// Snapshot is a complete, ordered view of a collection at Revision.
type Snapshot struct {
	Collection string     `json:"collection"`
	Documents  []Document `json:"documents"`
	Revision   int64      `json:"revision"`
}

// Patch describes an atomic change of a single document.
// Set replaces fields; Increment, ArrayUnion and ArrayRemove are applied
// server-side against the current stored value.
type Patch struct {
	Set         map[string]any      `json:"set,omitempty"`
	Increment   map[string]int64    `json:"increment,omitempty"`
	ArrayUnion  map[string][]string `json:"arrayUnion,omitempty"`
	ArrayRemove map[string][]string `json:"arrayRemove,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Increment) == 0 && len(p.ArrayUnion) == 0 && len(p.ArrayRemove) == 0
}

// WatchRequest представляет long-poll запрос на получение снапшота коллекции
type WatchRequest struct {
	Query       Query `json:"query"`
	After       int64 `json:"after"`        // последняя ревизия, известная клиенту
	WaitSeconds int   `json:"wait_seconds"` // сколько сервер может держать запрос
}

// CreateRequest представляет запрос на создание документа
type CreateRequest struct {
	Fields map[string]any `json:"fields"`
}

// CreateResponse представляет ответ на создание документа
type CreateResponse struct {
	ID       string `json:"id"`
	Revision int64  `json:"revision"`
}

// WriteResponse представляет ответ на изменение или удаление документа
type WriteResponse struct {
	Revision int64 `json:"revision"`
}
