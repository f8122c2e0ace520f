package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/protocol"
)

// RosterHandler relays roster changes to the rest of the room. The character
// tables themselves belong to the REST surface; the sync core only forwards
// the notifications.
type RosterHandler struct {
	rooms      *room.Registry
	characters CharacterStore
	logger     *zap.Logger
}

// NewRosterHandler creates a RosterHandler with the given dependencies.
//
// Precondition: rooms, characters, and logger must be non-nil.
func NewRosterHandler(rooms *room.Registry, characters CharacterStore, logger *zap.Logger) *RosterHandler {
	return &RosterHandler{
		rooms:      rooms,
		characters: characters,
		logger:     logger,
	}
}

// Added relays a roster addition. Accepted from the DM or the character's
// owner, like a move; anything else is silently dropped. The payload itself
// was already created through the REST surface and is opaque here.
func (h *RosterHandler) Added(ctx context.Context, sess *room.Session, m protocol.CharacterAdded) {
	if !sess.Role.IsDM() {
		owner, err := h.characters.Owner(ctx, m.CharacterID)
		if err != nil || owner != sess.UserID {
			return
		}
	}

	frame, err := protocol.Encode(protocol.NewCharacterAddedBroadcast(m.Character))
	if err != nil {
		h.logger.Error("encoding character_added broadcast", zap.Error(err))
		return
	}
	h.rooms.BroadcastOthers(sess, frame)
}

// Removed relays a roster removal. Accepted from the DM or the character's
// owner; anything else is silently dropped.
func (h *RosterHandler) Removed(ctx context.Context, sess *room.Session, m protocol.CharacterRemoved) {
	if !sess.Role.IsDM() {
		owner, err := h.characters.Owner(ctx, m.CharacterID)
		if err != nil || owner != sess.UserID {
			return
		}
	}

	frame, err := protocol.Encode(protocol.NewCharacterRemovedBroadcast(m.CharacterID))
	if err != nil {
		h.logger.Error("encoding character_removed broadcast", zap.Error(err))
		return
	}
	h.rooms.BroadcastOthers(sess, frame)
}
