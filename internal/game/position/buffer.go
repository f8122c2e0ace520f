// Package position buffers accepted character moves in memory and flushes
// them to the persistence gateway in periodic atomic batches.
package position

import "sync"

// Update is a queued position write. Angle is nil for DM drags, which carry
// no facing.
type Update struct {
	X     float64
	Y     float64
	Angle *float64
}

// Buffer holds the pending position write per character. Within one flush
// window the last write wins. All methods are safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	pending map[int64]Update
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{pending: make(map[int64]Update)}
}

// Put creates or overwrites the pending update for a character.
//
// Postcondition: the character's pending update equals u.
func (b *Buffer) Put(characterID int64, u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[characterID] = u
}

// Drain returns the pending updates and clears the buffer in one step, so a
// move arriving during the flush lands in the next window rather than being
// lost or flushed twice.
//
// Postcondition: the buffer is empty; the returned map is owned by the caller.
func (b *Buffer) Drain() map[int64]Update {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.pending
	b.pending = make(map[int64]Update)
	return drained
}

// Len returns the number of characters with a pending update.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
