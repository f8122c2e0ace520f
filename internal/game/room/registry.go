package room

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/openvtt/tabletop/internal/protocol"
)

// Session is one authenticated live connection. It is created on successful
// auth, owned by that connection, and referenced (never owned) by its room.
type Session struct {
	// ID is the unique connection identifier.
	ID uuid.UUID
	// UserID is the authenticated user.
	UserID int64
	// Username is the user's display name (for presence and chat).
	Username string
	// GameID is the room the session belongs to.
	GameID int64
	// Role is the session's authority within the game.
	Role protocol.Role
	// Outbox queues outbound frames for the connection's write pump.
	Outbox *Outbox
}

// Registry tracks every room and its connected sessions. Rooms are created
// lazily on first join and deleted when their last session leaves.
// All methods are safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[int64]map[uuid.UUID]*Session
	outboxBuffer int
}

// NewRegistry creates an empty Registry whose sessions get outboxes of the
// given buffer size.
func NewRegistry(outboxBuffer int) *Registry {
	return &Registry{
		rooms:        make(map[int64]map[uuid.UUID]*Session),
		outboxBuffer: outboxBuffer,
	}
}

// Join creates a Session for the authenticated connection and admits it into
// its game's room, creating the room if absent.
//
// Precondition: userID and gameID must be > 0; username must be non-empty.
// Postcondition: Returns the created Session with an open Outbox. The session
// belongs to exactly one room.
func (r *Registry) Join(userID int64, username string, gameID int64, role protocol.Role) *Session {
	sess := &Session{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		GameID:   gameID,
		Role:     role,
		Outbox:   NewOutbox(r.outboxBuffer),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[gameID] == nil {
		r.rooms[gameID] = make(map[uuid.UUID]*Session)
	}
	r.rooms[gameID][sess.ID] = sess

	return sess
}

// Leave removes the session from its room, closing its outbox. If the room
// becomes empty it is deleted and Leave reports that, so the caller can drop
// per-room state held elsewhere (turn state).
//
// Postcondition: The session's outbox is closed. Returns true iff the room
// was deleted.
func (r *Registry) Leave(sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess.Outbox.Close()

	sessions, ok := r.rooms[sess.GameID]
	if !ok {
		return false
	}
	delete(sessions, sess.ID)
	if len(sessions) == 0 {
		delete(r.rooms, sess.GameID)
		return true
	}
	return false
}

// BroadcastAll pushes a frame to every session in the room. Sends are
// best-effort: failures to closed or saturated outboxes are swallowed.
func (r *Registry) BroadcastAll(gameID int64, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.rooms[gameID] {
		_ = sess.Outbox.Push(frame)
	}
}

// BroadcastOthers pushes a frame to every session in the sender's room except
// the sender, which already holds the authoritative local state.
func (r *Registry) BroadcastOthers(sender *Session, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, sess := range r.rooms[sender.GameID] {
		if id == sender.ID {
			continue
		}
		_ = sess.Outbox.Push(frame)
	}
}

// BroadcastSubset pushes a frame to every session in the room for which the
// predicate holds.
//
// Precondition: pred must not call back into the Registry.
func (r *Registry) BroadcastSubset(gameID int64, pred func(*Session) bool, frame []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.rooms[gameID] {
		if pred(sess) {
			_ = sess.Outbox.Push(frame)
		}
	}
}

// Occupants returns the usernames of the sessions in the room, sorted.
//
// Postcondition: Returns a slice of usernames (may be empty).
func (r *Registry) Occupants(gameID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.rooms[gameID]
	names := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		names = append(names, sess.Username)
	}
	sort.Strings(names)
	return names
}

// SessionCount returns the number of live sessions in the room.
func (r *Registry) SessionCount(gameID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[gameID])
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
