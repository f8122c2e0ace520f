package gameserver

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/protocol"
	"github.com/openvtt/tabletop/internal/storage/postgres"
)

// ChatHandler validates, persists, and routes group and direct messages.
type ChatHandler struct {
	rooms    *room.Registry
	messages MessageStore
	maxLen   int
	logger   *zap.Logger
}

// NewChatHandler creates a ChatHandler with the given dependencies.
//
// Precondition: rooms, messages, and logger must be non-nil; maxLen must be >= 1.
func NewChatHandler(rooms *room.Registry, messages MessageStore, maxLen int, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		rooms:    rooms,
		messages: messages,
		maxLen:   maxLen,
		logger:   logger,
	}
}

// Send handles one chat message. Invalid messages (empty, oversized, or a
// malformed roll payload) are silently dropped and never persisted. Valid
// messages are persisted first, unconditionally, then routed: a nil
// recipient goes to the whole room including the sender, a non-nil one only
// to the sender's and recipient's sessions.
//
// Postcondition: Every routed message carries the gateway-assigned id and
// timestamp. A direct message to an offline recipient is still persisted and
// remains retrievable via history.
func (h *ChatHandler) Send(ctx context.Context, sess *room.Session, m protocol.ChatMessage) {
	if m.Content == "" || utf8.RuneCountInString(m.Content) > h.maxLen {
		return
	}
	if m.Roll != nil {
		if err := m.Roll.Validate(); err != nil {
			h.logger.Debug("dropping chat with malformed roll",
				zap.Int64("user_id", sess.UserID),
				zap.Error(err),
			)
			return
		}
	}

	stored := postgres.Message{
		GameID:      sess.GameID,
		SenderID:    sess.UserID,
		SenderName:  sess.Username,
		RecipientID: m.RecipientID,
		Content:     m.Content,
	}
	if m.Roll != nil {
		raw, err := json.Marshal(m.Roll)
		if err != nil {
			h.logger.Error("marshalling roll payload", zap.Error(err))
			return
		}
		stored.Roll = raw
	}

	if err := h.messages.Insert(ctx, &stored); err != nil {
		// Persistence failure never surfaces to clients; without a gateway
		// id the message cannot be delivered either, so it is lost.
		h.logger.Error("persisting chat message",
			zap.Int64("game_id", sess.GameID),
			zap.Int64("sender_id", sess.UserID),
			zap.Error(err),
		)
		return
	}

	frame, err := protocol.Encode(protocol.ChatMessageBroadcast{
		Type:        protocol.TypeChatMessage,
		ID:          stored.ID,
		SenderID:    stored.SenderID,
		SenderName:  stored.SenderName,
		RecipientID: stored.RecipientID,
		Content:     stored.Content,
		Roll:        m.Roll,
		CreatedAt:   stored.CreatedAt,
	})
	if err != nil {
		h.logger.Error("encoding chat broadcast", zap.Error(err))
		return
	}

	if m.RecipientID == nil {
		// Group message: the sender receives its own copy so the client UI
		// can confirm delivery with the assigned id.
		h.rooms.BroadcastAll(sess.GameID, frame)
		return
	}

	senderID, recipientID := sess.UserID, *m.RecipientID
	h.rooms.BroadcastSubset(sess.GameID, func(s *room.Session) bool {
		return s.UserID == senderID || s.UserID == recipientID
	}, frame)
}
