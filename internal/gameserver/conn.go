package gameserver

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openvtt/tabletop/internal/auth"
	"github.com/openvtt/tabletop/internal/game/room"
	"github.com/openvtt/tabletop/internal/protocol"
)

// serveConn runs one connection to completion. Flow:
//  1. Wait for the auth frame within the grace period.
//  2. Verify token and membership, admit the session into its room.
//  3. Send auth_ok with the current turn snapshot, announce presence.
//  4. Start the write pump, then read and dispatch until the socket closes.
//  5. On disconnect: leave the room, drop empty-room turn state, re-announce
//     presence.
func (s *Service) serveConn(ctx context.Context, ws *websocket.Conn) {
	defer ws.Close()

	start := time.Now()
	addr := ws.RemoteAddr().String()

	identity, ok := s.authenticate(ctx, ws, addr)
	if !ok {
		return
	}

	sess := s.rooms.Join(identity.UserID, identity.Username, identity.GameID, identity.Role)
	s.logger.Info("session joined",
		zap.String("remote_addr", addr),
		zap.Int64("user_id", sess.UserID),
		zap.Int64("game_id", sess.GameID),
		zap.String("role", string(sess.Role)),
		zap.Duration("auth_time", time.Since(start)),
	)

	writeDone := make(chan struct{})
	go s.writePump(ws, sess.Outbox, writeDone)

	if frame, err := protocol.Encode(protocol.NewAuthOK(s.turns.Snapshot(sess.GameID))); err == nil {
		_ = sess.Outbox.Push(frame)
	}
	s.announcePresence(sess.GameID)

	s.readLoop(ctx, ws, sess)

	if empty := s.rooms.Leave(sess); empty {
		s.turns.Drop(sess.GameID)
	} else {
		s.announcePresence(sess.GameID)
	}
	<-writeDone

	s.logger.Info("session closed",
		zap.String("remote_addr", addr),
		zap.Int64("user_id", sess.UserID),
		zap.Int64("game_id", sess.GameID),
		zap.Duration("session_duration", time.Since(start)),
	)
}

// authenticate reads frames until a decodable auth frame arrives or the
// grace period expires. Non-JSON and undecodable frames are ignored; a
// well-formed non-auth message from an unauthenticated connection is a
// protocol violation and closes the connection.
func (s *Service) authenticate(ctx context.Context, ws *websocket.Conn, addr string) (auth.Identity, bool) {
	deadline := time.Now().Add(s.grace)
	_ = ws.SetReadDeadline(deadline)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.closeWith(ws, protocol.CloseAuthTimeout, "authentication timeout")
			s.logger.Info("connection closed before auth",
				zap.String("remote_addr", addr),
				zap.Error(err),
			)
			return auth.Identity{}, false
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			continue
		}

		authMsg, isAuth := msg.(protocol.Auth)
		if !isAuth {
			s.closeWith(ws, protocol.CloseNotAuthenticated, "not authenticated")
			return auth.Identity{}, false
		}

		identity, err := s.authn.Authenticate(ctx, authMsg)
		if err != nil {
			code := auth.CloseCode(err)
			s.closeWith(ws, code, "authentication failed")
			s.logger.Info("authentication rejected",
				zap.String("remote_addr", addr),
				zap.Int("close_code", code),
				zap.Error(err),
			)
			return auth.Identity{}, false
		}

		// Clear the grace deadline; reads may now block indefinitely.
		_ = ws.SetReadDeadline(time.Time{})
		return identity, true
	}
}

// readLoop reads and dispatches frames until the socket errors. Each frame
// is processed to completion before the next is read, which preserves
// per-sender ordering of both state changes and resulting broadcasts.
func (s *Service) readLoop(ctx context.Context, ws *websocket.Conn, sess *room.Session) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// Malformed and unknown frames are dropped without response.
			s.logger.Debug("dropping undecodable frame",
				zap.Int64("user_id", sess.UserID),
				zap.Error(err),
			)
			continue
		}

		s.dispatch(ctx, sess, msg)
	}
}

// dispatch routes one decoded message to its handler. Unauthorized and
// invalid commands produce no observable effect for the sender.
func (s *Service) dispatch(ctx context.Context, sess *room.Session, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.Move:
		s.positionH.Move(ctx, sess, m)
	case protocol.DMDrag:
		s.positionH.DMDrag(sess, m)
	case protocol.TurnUpdate:
		s.turnH.Update(sess, m)
	case protocol.InitiativeRoll:
		s.turnH.SubmitRoll(ctx, sess, m)
	case protocol.InitiativeSort:
		s.turnH.Sort(sess)
	case protocol.ChatMessage:
		s.chatH.Send(ctx, sess, m)
	case protocol.CharacterAdded:
		s.rosterH.Added(ctx, sess, m)
	case protocol.CharacterRemoved:
		s.rosterH.Removed(ctx, sess, m)
	case protocol.Auth:
		// Re-auth on a live session is ignored.
	}
}

// writePump drains the session's outbox into the websocket. It exits when
// the outbox closes (session left) or a write fails (broken connection).
func (s *Service) writePump(ws *websocket.Conn, outbox *room.Outbox, done chan<- struct{}) {
	defer close(done)

	for frame := range outbox.Frames() {
		_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			// Best-effort delivery: drain the remaining frames so pushers
			// never block on a dead connection.
			for range outbox.Frames() {
			}
			return
		}
	}
}

// announcePresence broadcasts the room's current occupant list to everyone
// in it.
func (s *Service) announcePresence(gameID int64) {
	frame, err := protocol.Encode(protocol.NewPresenceBroadcast(s.rooms.Occupants(gameID)))
	if err != nil {
		return
	}
	s.rooms.BroadcastAll(gameID, frame)
}

// closeWith sends a close frame with the given application code and closes
// the socket.
func (s *Service) closeWith(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = ws.Close()
}
