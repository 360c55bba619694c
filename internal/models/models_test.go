package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComunidade_IsMember(t *testing.T) {
	c := Comunidade{
		Envelope: Envelope{ID: "c1", OwnerID: "owner"},
		Membros:  []string{"u2"},
	}

	tests := []struct {
		name  string
		actor string
		want  bool
	}{
		{name: "owner is implicit member", actor: "owner", want: true},
		{name: "listed member", actor: "u2", want: true},
		{name: "stranger", actor: "u3", want: false},
		{name: "empty actor", actor: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsMember(tt.actor))
		})
	}
}

func TestReview_LikedByActor(t *testing.T) {
	r := Review{LikedBy: []string{"u1", "u2"}}
	assert.True(t, r.LikedByActor("u1"))
	assert.False(t, r.LikedByActor("u3"))
}

func TestProgresso_Percent(t *testing.T) {
	assert.Equal(t, 0, Progresso{PaginaAtual: 10}.Percent())
	assert.Equal(t, 50, Progresso{PaginaAtual: 50, TotalPaginas: 100}.Percent())
	assert.Equal(t, 100, Progresso{PaginaAtual: 120, TotalPaginas: 100}.Percent())
}

func TestIsReservedField(t *testing.T) {
	for _, f := range []string{FieldID, FieldOwnerID, FieldCreatedAt, FieldUpdatedAt} {
		assert.True(t, IsReservedField(f), f)
	}
	assert.False(t, IsReservedField("titulo"))
}
