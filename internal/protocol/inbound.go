package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned by Decode for a frame whose type tag is not in
// the catalogue (including server-to-client-only types).
var ErrUnknownType = errors.New("unknown message type")

// Inbound is the union of client-to-server messages. Exactly one concrete
// type implements it per message kind accepted from clients.
type Inbound interface {
	// MessageType returns the wire type tag of the message.
	MessageType() string
}

// Auth establishes a session: the first frame on every connection.
type Auth struct {
	Token  string
	GameID int64
}

// Move is a position update for a character from its owner or the DM.
type Move struct {
	CharacterID int64
	X           float64
	Y           float64
	Angle       *float64
}

// DMDrag is a DM-authoritative reposition with no facing angle.
type DMDrag struct {
	CharacterID int64
	X           float64
	Y           float64
}

// CharacterAdded announces a roster addition. CharacterID identifies the
// character for the ownership check; the payload itself is opaque to the
// sync core and relayed verbatim.
type CharacterAdded struct {
	CharacterID int64
	Character   json.RawMessage
}

// CharacterRemoved announces a roster removal.
type CharacterRemoved struct {
	CharacterID int64
}

// TurnUpdate is a DM turn-state command. Enabled false ends action mode.
// With Enabled true, exactly one of the optional groups selects the
// transition: Advance moves the active turn, MoveFrom/MoveTo reorders the
// list, a non-nil Order starts turns with that order, and none of them
// enables action mode.
type TurnUpdate struct {
	Enabled  bool
	Order    []int64
	Advance  *int
	MoveFrom *int
	MoveTo   *int
}

// InitiativeRoll submits an initiative roll for a character.
type InitiativeRoll struct {
	CharacterID int64
	Roll        int
}

// InitiativeSort asks the server to sort the initiative candidates by their
// submitted rolls. DM only; carries no fields.
type InitiativeSort struct{}

// ChatMessage is a group (RecipientID nil) or direct chat message.
type ChatMessage struct {
	Content     string
	RecipientID *int64
	Roll        *Roll
}

// MessageType implements Inbound.
func (Auth) MessageType() string             { return TypeAuth }
func (Move) MessageType() string             { return TypeMove }
func (DMDrag) MessageType() string           { return TypeDMDrag }
func (CharacterAdded) MessageType() string   { return TypeCharacterAdded }
func (CharacterRemoved) MessageType() string { return TypeCharacterRemoved }
func (TurnUpdate) MessageType() string       { return TypeTurnUpdate }
func (InitiativeRoll) MessageType() string   { return TypeInitiativeRoll }
func (InitiativeSort) MessageType() string   { return TypeInitiativeSort }
func (ChatMessage) MessageType() string      { return TypeChatMessage }

// Decode parses a raw frame into its typed inbound message. Required fields
// are detected via pointer intermediates so that a legitimate zero value
// (x == 0) is distinguishable from an absent field.
//
// Postcondition: Returns a fully populated Inbound, or a non-nil error for
// non-JSON input, an unknown type tag, or a missing required field.
func Decode(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	switch env.Type {
	case TypeAuth:
		var raw struct {
			Token  *string `json:"token"`
			GameID *int64  `json:"gameId"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding auth: %w", err)
		}
		msg := Auth{}
		if raw.Token != nil {
			msg.Token = *raw.Token
		}
		if raw.GameID == nil {
			return nil, fmt.Errorf("auth: missing gameId")
		}
		msg.GameID = *raw.GameID
		return msg, nil

	case TypeMove:
		var raw struct {
			CharacterID *int64   `json:"characterId"`
			X           *float64 `json:"x"`
			Y           *float64 `json:"y"`
			Angle       *float64 `json:"angle"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding move: %w", err)
		}
		if raw.CharacterID == nil || raw.X == nil || raw.Y == nil {
			return nil, fmt.Errorf("move: missing required field")
		}
		return Move{CharacterID: *raw.CharacterID, X: *raw.X, Y: *raw.Y, Angle: raw.Angle}, nil

	case TypeDMDrag:
		var raw struct {
			CharacterID *int64   `json:"characterId"`
			X           *float64 `json:"x"`
			Y           *float64 `json:"y"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding dm_drag: %w", err)
		}
		if raw.CharacterID == nil || raw.X == nil || raw.Y == nil {
			return nil, fmt.Errorf("dm_drag: missing required field")
		}
		return DMDrag{CharacterID: *raw.CharacterID, X: *raw.X, Y: *raw.Y}, nil

	case TypeCharacterAdded:
		var raw struct {
			CharacterID *int64          `json:"characterId"`
			Character   json.RawMessage `json:"character"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding character_added: %w", err)
		}
		if raw.CharacterID == nil {
			return nil, fmt.Errorf("character_added: missing characterId")
		}
		if len(raw.Character) == 0 {
			return nil, fmt.Errorf("character_added: missing character")
		}
		return CharacterAdded{CharacterID: *raw.CharacterID, Character: raw.Character}, nil

	case TypeCharacterRemoved:
		var raw struct {
			CharacterID *int64 `json:"characterId"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding character_removed: %w", err)
		}
		if raw.CharacterID == nil {
			return nil, fmt.Errorf("character_removed: missing characterId")
		}
		return CharacterRemoved{CharacterID: *raw.CharacterID}, nil

	case TypeTurnUpdate:
		var raw struct {
			Enabled  *bool   `json:"enabled"`
			Order    []int64 `json:"order"`
			Advance  *int    `json:"advance"`
			MoveFrom *int    `json:"moveFrom"`
			MoveTo   *int    `json:"moveTo"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding turn_update: %w", err)
		}
		if raw.Enabled == nil {
			return nil, fmt.Errorf("turn_update: missing enabled")
		}
		if (raw.MoveFrom == nil) != (raw.MoveTo == nil) {
			return nil, fmt.Errorf("turn_update: moveFrom and moveTo must be given together")
		}
		return TurnUpdate{
			Enabled:  *raw.Enabled,
			Order:    raw.Order,
			Advance:  raw.Advance,
			MoveFrom: raw.MoveFrom,
			MoveTo:   raw.MoveTo,
		}, nil

	case TypeInitiativeRoll:
		var raw struct {
			CharacterID *int64 `json:"characterId"`
			Roll        *int   `json:"roll"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding initiative_roll: %w", err)
		}
		if raw.CharacterID == nil || raw.Roll == nil {
			return nil, fmt.Errorf("initiative_roll: missing required field")
		}
		return InitiativeRoll{CharacterID: *raw.CharacterID, Roll: *raw.Roll}, nil

	case TypeInitiativeSort:
		return InitiativeSort{}, nil

	case TypeChatMessage:
		var raw struct {
			Content     *string `json:"content"`
			RecipientID *int64  `json:"recipientId"`
			Roll        *Roll   `json:"roll"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding chat_message: %w", err)
		}
		if raw.Content == nil {
			return nil, fmt.Errorf("chat_message: missing content")
		}
		return ChatMessage{Content: *raw.Content, RecipientID: raw.RecipientID, Roll: raw.Roll}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}
