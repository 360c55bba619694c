package models

import "time"

// Envelope is the part of every synced entity that only the remote store
// assigns: identity, ownership and timestamps.
type Envelope struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
}

// EntityID returns the remote-assigned id.
func (e Envelope) EntityID() string { return e.ID }

// EntityOwner returns the id of the actor owning the entity.
func (e Envelope) EntityOwner() string { return e.OwnerID }

// Entity is implemented by every type kept in a collection store.
type Entity interface {
	EntityID() string
	EntityOwner() string
}

// Reserved field names of the envelope. They can never be written by a client.
const (
	FieldID        = "id"
	FieldOwnerID   = "ownerId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// IsReservedField reports whether name belongs to the envelope.
func IsReservedField(name string) bool {
	switch name {
	case FieldID, FieldOwnerID, FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}
