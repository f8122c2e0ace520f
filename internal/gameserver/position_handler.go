package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/openvtt/tabletop/internal/game/position"
	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/protocol"
)

// PositionHandler validates and relays movement events, and queues the
// accepted positions for batched persistence.
type PositionHandler struct {
	rooms      *room.Registry
	characters CharacterStore
	buffer     *position.Buffer
	logger     *zap.Logger
}

// NewPositionHandler creates a PositionHandler with the given dependencies.
//
// Precondition: rooms, characters, buffer, and logger must be non-nil.
func NewPositionHandler(rooms *room.Registry, characters CharacterStore, buffer *position.Buffer, logger *zap.Logger) *PositionHandler {
	return &PositionHandler{
		rooms:      rooms,
		characters: characters,
		buffer:     buffer,
		logger:     logger,
	}
}

// Move relays a character move to the rest of the room and queues the
// position write. Accepted iff the sender is the DM or the character's
// owner; anything else is silently dropped.
//
// Postcondition: On acceptance, every other session in the room receives the
// move and the pending update for the character equals (x, y, angle).
func (h *PositionHandler) Move(ctx context.Context, sess *room.Session, m protocol.Move) {
	if !h.mayMove(ctx, sess, m.CharacterID) {
		return
	}

	frame, err := protocol.Encode(protocol.NewMoveBroadcast(m))
	if err != nil {
		h.logger.Error("encoding move broadcast", zap.Error(err))
		return
	}
	h.rooms.BroadcastOthers(sess, frame)
	h.buffer.Put(m.CharacterID, position.Update{X: m.X, Y: m.Y, Angle: m.Angle})
}

// DMDrag relays a DM-authoritative reposition. Non-DM attempts are dropped.
//
// Postcondition: On acceptance, the broadcast and queued update carry no angle.
func (h *PositionHandler) DMDrag(sess *room.Session, m protocol.DMDrag) {
	if !sess.Role.IsDM() {
		return
	}

	frame, err := protocol.Encode(protocol.NewDMDragBroadcast(m))
	if err != nil {
		h.logger.Error("encoding dm_drag broadcast", zap.Error(err))
		return
	}
	h.rooms.BroadcastOthers(sess, frame)
	h.buffer.Put(m.CharacterID, position.Update{X: m.X, Y: m.Y})
}

// mayMove reports whether the session may reposition the character: the DM
// always may, a player only for characters they own.
func (h *PositionHandler) mayMove(ctx context.Context, sess *room.Session, characterID int64) bool {
	if sess.Role.IsDM() {
		return true
	}
	owner, err := h.characters.Owner(ctx, characterID)
	if err != nil {
		h.logger.Debug("ownership lookup failed",
			zap.Int64("character_id", characterID),
			zap.Error(err),
		)
		return false
	}
	return owner == sess.UserID
}
