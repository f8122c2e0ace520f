// Package room tracks the rooms of a server and the live sessions inside
// them, and provides the broadcast primitives the message routers use.
package room

import (
	"fmt"
	"sync"
)

// Outbox queues encoded frames for one session. The connection's write pump
// drains it; routers push into it. Pushes never block: a full buffer drops
// the frame, which is acceptable for an at-most-once presence protocol.
type Outbox struct {
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox with the given buffer size.
//
// Precondition: bufferSize should be positive; non-positive falls back to 64.
// Postcondition: Returns an Outbox with an open frames channel.
func NewOutbox(bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{frames: make(chan []byte, bufferSize)}
}

// Push enqueues an encoded frame.
//
// Postcondition: The frame is queued, or an error if the outbox is closed or full.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox is closed")
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("outbox buffer full")
	}
}

// Frames returns the read-only frame channel. The channel is closed when the
// outbox is closed.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close marks the outbox as closed and closes the frames channel. Idempotent.
//
// Postcondition: Further Push calls return an error.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
