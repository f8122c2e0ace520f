package gameserver

import (
	"context"

	"github.com/openvtt/tabletop/internal/storage/postgres"
)

// CharacterStore defines the ownership lookup required by the position,
// roster, and turn handlers.
type CharacterStore interface {
	Owner(ctx context.Context, characterID int64) (int64, error)
}

// MessageStore defines the chat persistence required by the ChatHandler.
type MessageStore interface {
	Insert(ctx context.Context, m *postgres.Message) error
}
