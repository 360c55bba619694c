package models

// Comunidade представляет сообщество читателей.
// Владелец (OwnerID) всегда неявно является участником.
type Comunidade struct {
	Envelope
	Nome      string   `json:"nome"`
	Descricao string   `json:"descricao"`
	Membros   []string `json:"membros"`
}

// IsMember reports whether actorID belongs to the community.
func (c Comunidade) IsMember(actorID string) bool {
	if actorID == "" {
		return false
	}
	return c.OwnerID == actorID || containsString(c.Membros, actorID)
}
