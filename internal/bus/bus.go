// Package bus provides a bounded in-memory broadcast queue.
// Every subscriber reads the same ring of recent messages through its own
// cursor, so a slow reader loses the oldest messages instead of holding up
// publishers.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrNoSubscribers is returned by Publish when no cursor is attached.
	// The message is discarded, not kept for later subscribers.
	ErrNoSubscribers = errors.New("no subscribers attached")

	// ErrClosed is returned once the bus is shut down.
	ErrClosed = errors.New("bus closed")
)

// LagError is returned by Cursor.Next when the cursor fell behind by more
// than the bus capacity and was moved forward to the oldest retained message.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged behind, %d messages skipped", e.Skipped)
}

// Stats holds lifetime counters of a bus.
type Stats struct {
	Published   uint64
	Undelivered uint64
}

// Bus is a multi-producer, multi-consumer broadcast queue with a fixed
// capacity. It is safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	ring   []string
	head   uint64 // sequence number of the next message
	subs   int
	closed bool
	// wake is closed and replaced on every state change so blocked cursors
	// re-check the ring.
	wake chan struct{}

	published   atomic.Uint64
	undelivered atomic.Uint64
}

// New creates a Bus retaining up to capacity unread messages per cursor.
// A capacity below 1 is treated as 1.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		ring: make([]string, capacity),
		wake: make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (b *Bus) Capacity() int {
	return len(b.ring)
}

// Subscribers returns the number of attached cursors.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:   b.published.Load(),
		Undelivered: b.undelivered.Load(),
	}
}

// Publish appends msg to the ring and wakes every waiting cursor. It never
// blocks on readers. With zero attached cursors the message is dropped and
// ErrNoSubscribers is returned.
func (b *Bus) Publish(msg string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.subs == 0 {
		b.mu.Unlock()
		b.undelivered.Add(1)
		return ErrNoSubscribers
	}
	b.ring[b.head%uint64(len(b.ring))] = msg
	b.head++
	b.broadcastLocked()
	b.mu.Unlock()

	b.published.Add(1)
	return nil
}

// Subscribe attaches a new cursor positioned at the current head. It only
// sees messages published after this call.
func (b *Bus) Subscribe() *Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs++
	return &Cursor{bus: b, next: b.head}
}

// Close shuts the bus down. Cursors drain what is still retained and then
// get ErrClosed; Publish returns ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.broadcastLocked()
}

func (b *Bus) broadcastLocked() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// Cursor is one subscriber's read position in a Bus. A cursor must be used
// by one goroutine at a time; Close may be called from any goroutine.
type Cursor struct {
	bus      *Bus
	next     uint64
	detached bool
}

// Next blocks until the next message is available and returns it.
//
// If the cursor fell more than Capacity messages behind, it skips to the
// oldest retained message and returns a *LagError once; the following call
// resumes normal delivery. ErrClosed is returned when the bus is closed and
// drained or the cursor was closed. ctx.Err() is returned if ctx ends first.
func (c *Cursor) Next(ctx context.Context) (string, error) {
	b := c.bus
	for {
		b.mu.Lock()
		if c.detached {
			b.mu.Unlock()
			return "", ErrClosed
		}

		capacity := uint64(len(b.ring))
		if b.head > capacity && c.next < b.head-capacity {
			oldest := b.head - capacity
			skipped := oldest - c.next
			c.next = oldest
			b.mu.Unlock()
			return "", &LagError{Skipped: skipped}
		}

		if c.next < b.head {
			msg := b.ring[c.next%capacity]
			c.next++
			b.mu.Unlock()
			return msg, nil
		}

		if b.closed {
			b.mu.Unlock()
			return "", ErrClosed
		}

		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close detaches the cursor from the bus. It is safe to call more than once.
func (c *Cursor) Close() {
	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.detached {
		return
	}
	c.detached = true
	b.subs--
	b.broadcastLocked()
}
