// Package protocol defines the JSON wire protocol spoken over the websocket:
// message envelopes, the typed inbound union, outbound frames, and the close
// codes used to report authentication failures.
//
// Every frame is a JSON object carrying a "type" tag. Inbound frames are
// decoded into one concrete struct per message kind; a frame whose required
// fields are missing or ill-typed fails to decode and is dropped by the
// caller, so handlers never see a partially populated message.
package protocol

// Message type tags.
const (
	TypeAuth             = "auth"
	TypeAuthOK           = "auth_ok"
	TypeMove             = "move"
	TypeDMDrag           = "dm_drag"
	TypeCharacterAdded   = "character_added"
	TypeCharacterRemoved = "character_removed"
	TypeTurnUpdate       = "turn_update"
	TypeInitiativeRoll   = "initiative_roll"
	TypeInitiativeSort   = "initiative_sort"
	TypeChatMessage      = "chat_message"
	TypePresence         = "presence"
)

// Role is a session's privilege level within a game.
type Role string

const (
	// RolePlayer may move owned characters, roll initiative, and chat.
	RolePlayer Role = "player"
	// RoleDM has full authority over turn state and every character.
	RoleDM Role = "dm"
)

// IsDM reports whether the role carries DM authority.
func (r Role) IsDM() bool { return r == RoleDM }
