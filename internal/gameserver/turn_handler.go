package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/game/turn"
	"github.com/openvtt/tabletop/internal/protocol"
)

// TurnHandler applies turn-state commands to the coordinator and broadcasts
// the results. Every DM-only command from a non-DM session is a silent
// no-op: no state change, no broadcast, no error frame. That absence of
// negative acknowledgment is deliberate.
type TurnHandler struct {
	rooms      *room.Registry
	turns      *turn.Coordinator
	characters CharacterStore
	logger     *zap.Logger
}

// NewTurnHandler creates a TurnHandler with the given dependencies.
//
// Precondition: rooms, turns, characters, and logger must be non-nil.
func NewTurnHandler(rooms *room.Registry, turns *turn.Coordinator, characters CharacterStore, logger *zap.Logger) *TurnHandler {
	return &TurnHandler{
		rooms:      rooms,
		turns:      turns,
		characters: characters,
		logger:     logger,
	}
}

// Update applies a DM turn command. The enabled flag and the optional field
// groups select the transition: disable ends action mode; advance moves the
// active turn; moveFrom/moveTo reorders; a non-empty order starts turns,
// enabling action mode in the same step when it was off; a bare enable
// enters the awaiting-rolls state.
func (h *TurnHandler) Update(sess *room.Session, m protocol.TurnUpdate) {
	if !sess.Role.IsDM() {
		return
	}

	var (
		snap protocol.TurnSnapshot
		err  error
	)
	switch {
	case !m.Enabled:
		snap = h.turns.End(sess.GameID)
	case m.Advance != nil:
		snap, err = h.turns.Advance(sess.GameID, *m.Advance)
	case m.MoveFrom != nil && m.MoveTo != nil:
		snap, err = h.turns.Reorder(sess.GameID, *m.MoveFrom, *m.MoveTo)
	case len(m.Order) > 0:
		snap, err = h.turns.StartTurns(sess.GameID, m.Order)
	default:
		snap = h.turns.Enable(sess.GameID)
	}
	if err != nil {
		h.logger.Debug("turn command rejected",
			zap.Int64("game_id", sess.GameID),
			zap.Error(err),
		)
		return
	}

	h.broadcast(sess.GameID, protocol.NewTurnUpdateBroadcast(snap))
}

// SubmitRoll records an initiative roll. The DM may roll for any character;
// a player only for their own. Accepted rolls are announced to the whole
// room with the submitter's user id.
func (h *TurnHandler) SubmitRoll(ctx context.Context, sess *room.Session, m protocol.InitiativeRoll) {
	if !sess.Role.IsDM() {
		owner, err := h.characters.Owner(ctx, m.CharacterID)
		if err != nil || owner != sess.UserID {
			return
		}
	}

	if _, err := h.turns.SubmitRoll(sess.GameID, m.CharacterID, m.Roll); err != nil {
		h.logger.Debug("initiative roll rejected",
			zap.Int64("game_id", sess.GameID),
			zap.Error(err),
		)
		return
	}

	h.broadcast(sess.GameID, protocol.NewInitiativeRollBroadcast(m.CharacterID, m.Roll, sess.UserID))
}

// Sort orders the initiative candidates by their rolls and announces the
// sorted character ids. DM only; requires at least one submitted roll.
func (h *TurnHandler) Sort(sess *room.Session) {
	if !sess.Role.IsDM() {
		return
	}

	sorted, err := h.turns.SortByInitiative(sess.GameID)
	if err != nil {
		h.logger.Debug("initiative sort rejected",
			zap.Int64("game_id", sess.GameID),
			zap.Error(err),
		)
		return
	}

	h.broadcast(sess.GameID, protocol.NewInitiativeSortBroadcast(sorted))
}

func (h *TurnHandler) broadcast(gameID int64, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		h.logger.Error("encoding turn broadcast", zap.Error(err))
		return
	}
	h.rooms.BroadcastAll(gameID, frame)
}
