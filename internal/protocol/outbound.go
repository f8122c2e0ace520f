package protocol

import (
	"encoding/json"
	"time"
)

// InitiativeEntry pairs a character with its submitted roll, nil until rolled.
type InitiativeEntry struct {
	CharacterID int64 `json:"characterId"`
	Roll        *int  `json:"roll"`
}

// TurnSnapshot is the full turn state of a room as sent to clients.
type TurnSnapshot struct {
	Enabled     bool              `json:"enabled"`
	Order       []int64           `json:"order"`
	ActiveIndex int               `json:"activeIndex"`
	TurnCounter int               `json:"turnCounter"`
	Rolls       []InitiativeEntry `json:"rolls,omitempty"`
}

// AuthOK acknowledges a successful auth and carries the room's current turn
// snapshot, nil when action mode has never been enabled.
type AuthOK struct {
	Type      string        `json:"type"`
	TurnState *TurnSnapshot `json:"turnState,omitempty"`
}

// NewAuthOK builds an auth_ok frame.
func NewAuthOK(snapshot *TurnSnapshot) AuthOK {
	return AuthOK{Type: TypeAuthOK, TurnState: snapshot}
}

// MoveBroadcast relays an accepted move to the other sessions in the room.
type MoveBroadcast struct {
	Type        string   `json:"type"`
	CharacterID int64    `json:"characterId"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Angle       *float64 `json:"angle"`
}

// NewMoveBroadcast builds a move frame from an accepted Move.
func NewMoveBroadcast(m Move) MoveBroadcast {
	return MoveBroadcast{Type: TypeMove, CharacterID: m.CharacterID, X: m.X, Y: m.Y, Angle: m.Angle}
}

// DMDragBroadcast relays an accepted DM drag to the other sessions.
type DMDragBroadcast struct {
	Type        string  `json:"type"`
	CharacterID int64   `json:"characterId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// NewDMDragBroadcast builds a dm_drag frame from an accepted DMDrag.
func NewDMDragBroadcast(d DMDrag) DMDragBroadcast {
	return DMDragBroadcast{Type: TypeDMDrag, CharacterID: d.CharacterID, X: d.X, Y: d.Y}
}

// CharacterAddedBroadcast relays a roster addition verbatim.
type CharacterAddedBroadcast struct {
	Type      string          `json:"type"`
	Character json.RawMessage `json:"character"`
}

// NewCharacterAddedBroadcast builds a character_added frame.
func NewCharacterAddedBroadcast(character json.RawMessage) CharacterAddedBroadcast {
	return CharacterAddedBroadcast{Type: TypeCharacterAdded, Character: character}
}

// CharacterRemovedBroadcast relays a roster removal.
type CharacterRemovedBroadcast struct {
	Type        string `json:"type"`
	CharacterID int64  `json:"characterId"`
}

// NewCharacterRemovedBroadcast builds a character_removed frame.
func NewCharacterRemovedBroadcast(characterID int64) CharacterRemovedBroadcast {
	return CharacterRemovedBroadcast{Type: TypeCharacterRemoved, CharacterID: characterID}
}

// TurnUpdateBroadcast announces the room's turn state after a transition.
type TurnUpdateBroadcast struct {
	Type              string  `json:"type"`
	Enabled           bool    `json:"enabled"`
	Order             []int64 `json:"order"`
	ActiveIndex       int     `json:"activeIndex"`
	TurnCounter       int     `json:"turnCounter"`
	SortedPlayerOrder []int64 `json:"sortedPlayerOrder,omitempty"`
}

// NewTurnUpdateBroadcast builds a turn_update frame from a snapshot.
func NewTurnUpdateBroadcast(s TurnSnapshot) TurnUpdateBroadcast {
	return TurnUpdateBroadcast{
		Type:        TypeTurnUpdate,
		Enabled:     s.Enabled,
		Order:       s.Order,
		ActiveIndex: s.ActiveIndex,
		TurnCounter: s.TurnCounter,
	}
}

// InitiativeRollBroadcast announces a submitted initiative roll.
type InitiativeRollBroadcast struct {
	Type        string `json:"type"`
	CharacterID int64  `json:"characterId"`
	Roll        int    `json:"roll"`
	UserID      int64  `json:"userId"`
}

// NewInitiativeRollBroadcast builds an initiative_roll frame.
func NewInitiativeRollBroadcast(characterID int64, roll int, userID int64) InitiativeRollBroadcast {
	return InitiativeRollBroadcast{Type: TypeInitiativeRoll, CharacterID: characterID, Roll: roll, UserID: userID}
}

// InitiativeSortBroadcast announces the sorted candidate order.
type InitiativeSortBroadcast struct {
	Type          string  `json:"type"`
	SortedCharIDs []int64 `json:"sortedCharIds"`
}

// NewInitiativeSortBroadcast builds an initiative_sort frame.
func NewInitiativeSortBroadcast(sorted []int64) InitiativeSortBroadcast {
	return InitiativeSortBroadcast{Type: TypeInitiativeSort, SortedCharIDs: sorted}
}

// ChatMessageBroadcast delivers a persisted chat message.
type ChatMessageBroadcast struct {
	Type        string    `json:"type"`
	ID          int64     `json:"id"`
	SenderID    int64     `json:"senderId"`
	SenderName  string    `json:"senderName"`
	RecipientID *int64    `json:"recipientId"`
	Content     string    `json:"content"`
	Roll        *Roll     `json:"roll,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PresenceBroadcast announces the usernames currently in the room.
type PresenceBroadcast struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// NewPresenceBroadcast builds a presence frame.
func NewPresenceBroadcast(users []string) PresenceBroadcast {
	return PresenceBroadcast{Type: TypePresence, Users: users}
}

// Encode marshals an outbound frame once for fan-out to many sessions.
//
// Precondition: v must be one of the outbound frame types in this package.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
