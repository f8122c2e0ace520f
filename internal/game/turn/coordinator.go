// Package turn implements the per-room turn state machine: action mode,
// initiative rolls, and the active-turn pointer.
//
// States: disabled; enabled with no fixed order (awaiting rolls); enabled
// with a fixed order and a valid active index. Authorization is the caller's
// concern; this package only enforces the state machine's own invariants.
package turn

import (
	"errors"
	"sort"
	"sync"

	"github.com/openvtt/tabletop/internal/protocol"
)

// ErrDisabled is returned for transitions that require action mode to be on.
var ErrDisabled = errors.New("action mode disabled")

// ErrNotActive is returned for transitions that require a fixed turn order.
var ErrNotActive = errors.New("turn order not started")

// ErrNoRolls is returned by SortByInitiative when no roll has been submitted.
var ErrNoRolls = errors.New("no initiative rolls submitted")

// ErrBadIndex is returned for out-of-range reorder indices.
var ErrBadIndex = errors.New("index out of range")

// ErrBadDelta is returned for advance steps other than +1 or -1.
var ErrBadDelta = errors.New("advance delta must be +1 or -1")

// ErrEmptyOrder is returned by StartTurns when there is nothing to order.
var ErrEmptyOrder = errors.New("empty turn order")

// state is one room's turn state.
//
// Invariant: activeIndex is within [0, len(order)-1] when order is non-empty,
// else -1. candidates preserves roll submission order until sorted.
type state struct {
	enabled     bool
	order       []int64
	activeIndex int
	turnCounter int
	rolls       map[int64]*int
	candidates  []int64
}

// Coordinator owns the turn state of every room. All methods are safe for
// concurrent use.
type Coordinator struct {
	mu    sync.Mutex
	rooms map[int64]*state
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{rooms: make(map[int64]*state)}
}

// Enable turns action mode on for the room, entering the awaiting-rolls
// state. Enabling an already-enabled room resets nothing.
//
// Postcondition: The room is enabled; returns its snapshot.
func (c *Coordinator) Enable(gameID int64) protocol.TurnSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[gameID]
	if !ok {
		st = newState()
		c.rooms[gameID] = st
	}
	st.enabled = true
	return st.snapshot()
}

// SubmitRoll records an initiative roll for a character. First submission
// adds the character to the candidate list; later ones overwrite the roll.
//
// Postcondition: rolls[characterID] == roll; the state is otherwise unchanged.
func (c *Coordinator) SubmitRoll(gameID, characterID int64, roll int) (protocol.TurnSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[gameID]
	if !ok || !st.enabled {
		return protocol.TurnSnapshot{}, ErrDisabled
	}

	if _, seen := st.rolls[characterID]; !seen {
		st.candidates = append(st.candidates, characterID)
	}
	r := roll
	st.rolls[characterID] = &r
	return st.snapshot(), nil
}

// SortByInitiative reorders the candidate list descending by submitted roll.
// Characters without a roll sort last. Equal rolls keep their prior relative
// order (stable sort) as the tie-break policy.
//
// Postcondition: Returns the sorted character IDs, or ErrNoRolls when no
// roll has been submitted.
func (c *Coordinator) SortByInitiative(gameID int64) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[gameID]
	if !ok || !st.enabled {
		return nil, ErrDisabled
	}

	any := false
	for _, r := range st.rolls {
		if r != nil {
			any = true
			break
		}
	}
	if !any {
		return nil, ErrNoRolls
	}

	sort.SliceStable(st.candidates, func(i, j int) bool {
		ri, rj := st.rolls[st.candidates[i]], st.rolls[st.candidates[j]]
		if ri == nil {
			return false
		}
		if rj == nil {
			return true
		}
		return *ri > *rj
	})

	sorted := make([]int64, len(st.candidates))
	copy(sorted, st.candidates)
	return sorted, nil
}

// StartTurns fixes the turn order and activates the first turn. A nil or
// empty order falls back to the current (possibly sorted) candidate list.
// Starting turns implies action mode: a disabled or unknown room is enabled
// in the same step, so a single command can enable and start at once.
//
// Postcondition: the room is enabled, order is fixed, activeIndex == 0,
// turnCounter == 0.
func (c *Coordinator) StartTurns(gameID int64, order []int64) (protocol.TurnSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[gameID]
	if !ok {
		st = newState()
	}

	if len(order) == 0 {
		order = st.candidates
	}
	if len(order) == 0 {
		return protocol.TurnSnapshot{}, ErrEmptyOrder
	}

	c.rooms[gameID] = st
	st.enabled = true
	st.order = make([]int64, len(order))
	copy(st.order, order)
	st.activeIndex = 0
	st.turnCounter = 0
	return st.snapshot(), nil
}

// Advance moves the active turn by one step. Stepping past the last index
// wraps to 0 and increments the turn counter; stepping before the first
// wraps to the last index and decrements the counter, floored at 0.
//
// Postcondition: The active-index invariant holds; turnCounter >= 0.
func (c *Coordinator) Advance(gameID int64, delta int) (protocol.TurnSnapshot, error) {
	if delta != 1 && delta != -1 {
		return protocol.TurnSnapshot{}, ErrBadDelta
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[gameID]
	if !ok || !st.enabled {
		return protocol.TurnSnapshot{}, ErrDisabled
	}
	if len(st.order) == 0 {
		return protocol.TurnSnapshot{}, ErrNotActive
	}

	st.activeIndex += delta
	switch {
	case st.activeIndex >= len(st.order):
		st.activeIndex = 0
		st.turnCounter++
	case st.activeIndex < 0:
		st.activeIndex = len(st.order) - 1
		if st.turnCounter > 0 {
			st.turnCounter--
		}
	}
	return st.snapshot(), nil
}

// Reorder moves the entry at from to position to. If the moved entry was the
// active one the active index follows it; otherwise the index shifts so the
// same character keeps the active turn.
func (c *Coordinator) Reorder(gameID int64, from, to int) (protocol.TurnSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[gameID]
	if !ok || !st.enabled {
		return protocol.TurnSnapshot{}, ErrDisabled
	}
	if len(st.order) == 0 {
		return protocol.TurnSnapshot{}, ErrNotActive
	}
	if from < 0 || from >= len(st.order) || to < 0 || to >= len(st.order) {
		return protocol.TurnSnapshot{}, ErrBadIndex
	}

	activeChar := st.order[st.activeIndex]

	moved := st.order[from]
	st.order = append(st.order[:from], st.order[from+1:]...)
	st.order = append(st.order[:to], append([]int64{moved}, st.order[to:]...)...)

	for i, id := range st.order {
		if id == activeChar {
			st.activeIndex = i
			break
		}
	}
	return st.snapshot(), nil
}

// End turns action mode off and clears the room's order, rolls, and counters.
//
// Postcondition: The room is disabled; returns the cleared snapshot.
func (c *Coordinator) End(gameID int64) protocol.TurnSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := newState()
	c.rooms[gameID] = st
	return st.snapshot()
}

// Snapshot returns the room's current turn state, or nil when the room has
// no turn state (used for the auth_ok handshake).
func (c *Coordinator) Snapshot(gameID int64) *protocol.TurnSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.rooms[gameID]
	if !ok {
		return nil
	}
	snap := st.snapshot()
	return &snap
}

// Drop discards the room's turn state. Called when the room is destroyed.
func (c *Coordinator) Drop(gameID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, gameID)
}

func newState() *state {
	return &state{activeIndex: -1, rolls: make(map[int64]*int)}
}

func (st *state) snapshot() protocol.TurnSnapshot {
	order := make([]int64, len(st.order))
	copy(order, st.order)

	idx := st.activeIndex
	if len(st.order) == 0 {
		idx = -1
	}

	rolls := make([]protocol.InitiativeEntry, 0, len(st.candidates))
	for _, id := range st.candidates {
		var roll *int
		if r := st.rolls[id]; r != nil {
			v := *r
			roll = &v
		}
		rolls = append(rolls, protocol.InitiativeEntry{CharacterID: id, Roll: roll})
	}

	return protocol.TurnSnapshot{
		Enabled:     st.enabled,
		Order:       order,
		ActiveIndex: idx,
		TurnCounter: st.turnCounter,
		Rolls:       rolls,
	}
}
