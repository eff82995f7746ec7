// Package channel holds the named broadcast channels and the registry that
// maps channel ids to them. Channels live for the whole process; the registry
// only ever grows.
package channel

import (
	"github.com/google/uuid"

	"github.com/channelcast/backend/internal/bus"
)

// DefaultCapacity is used when a channel is created without a usable capacity.
const DefaultCapacity = 32

// Channel is a named broadcast topic backed by one Bus.
type Channel struct {
	id       uuid.UUID
	name     string
	capacity int
	bus      *bus.Bus
}

func newChannel(name string, capacity int) *Channel {
	return &Channel{
		id:       uuid.New(),
		name:     name,
		capacity: capacity,
		bus:      bus.New(capacity),
	}
}

func (c *Channel) ID() uuid.UUID { return c.id }

func (c *Channel) Name() string { return c.name }

func (c *Channel) Capacity() int { return c.capacity }

// Publish broadcasts msg to every subscriber attached at call time.
// It returns bus.ErrNoSubscribers when nobody is listening.
func (c *Channel) Publish(msg string) error {
	return c.bus.Publish(msg)
}

// Subscribe attaches a new cursor to the channel. Callers must Close it.
func (c *Channel) Subscribe() *bus.Cursor {
	return c.bus.Subscribe()
}

// Info returns the public description of the channel.
func (c *Channel) Info() Info {
	stats := c.bus.Stats()
	return Info{
		ID:          c.id,
		Name:        c.name,
		Capacity:    c.capacity,
		Subscribers: c.bus.Subscribers(),
		Published:   stats.Published,
		Undelivered: stats.Undelivered,
	}
}

func (c *Channel) close() {
	c.bus.Close()
}

// Info describes a channel for listings.
type Info struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Capacity    int       `json:"capacity"`
	Subscribers int       `json:"subscribers"`
	Published   uint64    `json:"published"`
	Undelivered uint64    `json:"undelivered"`
}
