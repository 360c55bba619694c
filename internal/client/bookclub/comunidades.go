package bookclub

import (
	"context"

	"github.com/iudanet/bookclub/internal/client/mutation"
	"github.com/iudanet/bookclub/internal/models"
)

var memberRelation = mutation.Relation[models.Comunidade]{
	Name:        "member",
	Field:       "membros",
	Contains:    models.Comunidade.IsMember,
	OwnerLocked: true,
}

// Comunidades manages reader communities. The owner is always a member.
type Comunidades struct {
	service[models.Comunidade]
}

// CreateComunidade creates a community with the current reader as owner and
// first member.
func (c *Comunidades) CreateComunidade(ctx context.Context, nome, descricao string) mutation.Result {
	payload := mutation.Payload{
		"nome":      nome,
		"descricao": descricao,
	}
	if actorID := c.actorID(); actorID != "" {
		payload["membros"] = []string{actorID}
	}
	return c.store.Create(ctx, payload)
}

// UpdateComunidade changes name and description. Empty fields stay as they are.
func (c *Comunidades) UpdateComunidade(ctx context.Context, id, nome, descricao string) mutation.Result {
	return c.store.Update(ctx, id, mutation.Payload{
		"nome":      nome,
		"descricao": descricao,
	})
}

// DeleteComunidade removes a community owned by the current reader.
func (c *Comunidades) DeleteComunidade(ctx context.Context, id string) mutation.Result {
	return c.store.Delete(ctx, id)
}

// JoinComunidade adds the current reader to the community.
func (c *Comunidades) JoinComunidade(ctx context.Context, id string) mutation.Result {
	return c.store.SetRelation(ctx, id, memberRelation, true)
}

// LeaveComunidade takes the current reader out of the community. The owner
// cannot leave.
func (c *Comunidades) LeaveComunidade(ctx context.Context, id string) mutation.Result {
	return c.store.SetRelation(ctx, id, memberRelation, false)
}

// RemoveMember takes memberID out of the community. Only the owner may do it.
func (c *Comunidades) RemoveMember(ctx context.Context, id, memberID string) mutation.Result {
	return c.store.RemoveMember(ctx, id, memberRelation, memberID)
}

// IsMember reports whether the current reader belongs to the community.
func (c *Comunidades) IsMember(id string) bool {
	return c.store.Related(id, memberRelation)
}

// HasMember reports whether memberID belongs to the community. For the
// current reader in-flight joins and leaves count, like in IsMember.
func (c *Comunidades) HasMember(id, memberID string) bool {
	if memberID == "" {
		return false
	}
	if memberID == c.actorID() {
		return c.IsMember(id)
	}
	cm, ok := c.store.ByID(id)
	return ok && cm.IsMember(memberID)
}

// ComunidadesOf returns the communities actorID belongs to.
func (c *Comunidades) ComunidadesOf(actorID string) []models.Comunidade {
	return c.byParent(actorID)
}

// Comunidade looks a community up by id.
func (c *Comunidades) Comunidade(id string) (models.Comunidade, bool) {
	return c.store.ByID(id)
}
