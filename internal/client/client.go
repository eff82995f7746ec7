// Package client drives one attached connection as either a publisher or a
// subscriber.
//
// A publisher reads text frames and publishes each one to every bound
// channel; a failure on one channel never blocks the others. A subscriber
// runs one forwarder per bound channel, all writing to the same connection
// under a per-client lock, and stops all of them as soon as one send fails.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/channelcast/backend/internal/bus"
	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/logging"
	"github.com/channelcast/backend/internal/transport"
)

// ErrAlreadyRunning is returned when Run is called more than once.
var ErrAlreadyRunning = errors.New("client already started")

// errPeerClosed ends a subscriber group when the peer sends a close frame.
var errPeerClosed = errors.New("peer closed the connection")

// Stats holds per-client counters.
type Stats struct {
	Received    uint64 // text frames read from the connection
	Published   uint64 // channel publishes that were accepted
	Undelivered uint64 // channel publishes that failed, including no subscribers
	Sent        uint64 // messages written to the connection
	Skipped     uint64 // messages lost to lag
	Dropped     uint64 // non-text frames ignored
}

// Client is one attached connection bound to a fixed set of channels.
// The client owns the connection; the channels outlive it.
type Client struct {
	id       uuid.UUID
	role     Role
	channels []*channel.Channel
	conn     transport.Connection
	log      *slog.Logger

	sendMu sync.Mutex
	state  atomic.Int32

	received    atomic.Uint64
	published   atomic.Uint64
	undelivered atomic.Uint64
	sent        atomic.Uint64
	skipped     atomic.Uint64
	dropped     atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the base logger. Client id and role are added to it.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithID overrides the generated client id.
func WithID(id uuid.UUID) Option {
	return func(c *Client) {
		c.id = id
	}
}

// New creates a client in the Attached state.
func New(role Role, channels []*channel.Channel, conn transport.Connection, opts ...Option) *Client {
	c := &Client{
		id:       uuid.New(),
		role:     role,
		channels: channels,
		conn:     conn,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(
		slog.String("client_id", c.id.String()),
		slog.String("role", role.String()),
	)
	return c
}

func (c *Client) ID() uuid.UUID { return c.id }

func (c *Client) Role() Role { return c.role }

func (c *Client) State() State { return State(c.state.Load()) }

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Received:    c.received.Load(),
		Published:   c.published.Load(),
		Undelivered: c.undelivered.Load(),
		Sent:        c.sent.Load(),
		Skipped:     c.skipped.Load(),
		Dropped:     c.dropped.Load(),
	}
}

// Run drives the connection until the peer closes it, it fails, or ctx ends.
// It returns nil on a graceful close. The connection is closed on return.
func (c *Client) Run(ctx context.Context) (err error) {
	if !c.state.CompareAndSwap(int32(StateAttached), int32(StateRunning)) {
		return ErrAlreadyRunning
	}
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			err = logging.WrapError(fmt.Errorf("panic: %v", r), "client engine")
			c.log.Error("client engine panicked", slog.Any("error", err))
		}
		_ = c.conn.Close()
		c.state.Store(int32(StateTerminated))
	}()

	// Closing the connection is the only way to interrupt a blocked receive.
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	c.log.Info("client attached", slog.Int("channels", len(c.channels)))

	switch c.role {
	case RolePublisher:
		err = c.runPublisher()
	case RoleSubscriber:
		err = c.runSubscriber(ctx)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidRole, c.role)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) runPublisher() error {
	for {
		frame, err := c.conn.ReceiveNext()
		if err != nil {
			c.log.Warn("client disconnected abruptly", slog.Any("error", err))
			return err
		}

		switch frame.Kind {
		case transport.FrameText:
			c.received.Add(1)
			report := c.Publish(frame.Text)
			c.published.Add(uint64(report.Delivered()))
			c.undelivered.Add(uint64(len(report.Failed())))
		case transport.FrameClose:
			c.log.Info("client disconnected")
			return nil
		default:
			c.dropped.Add(1)
			c.log.Warn("dropping non-text frame", slog.String("kind", frame.Kind.String()))
		}
	}
}

// Publish sends msg to every bound channel independently and reports the
// outcome per channel.
func (c *Client) Publish(msg string) PublishReport {
	report := PublishReport{Results: make([]PublishResult, 0, len(c.channels))}
	for _, ch := range c.channels {
		err := ch.Publish(msg)
		report.Results = append(report.Results, PublishResult{ChannelID: ch.ID(), Err: err})

		if err != nil {
			c.log.Warn("message failed to enqueue",
				slog.String("channel_id", ch.ID().String()),
				slog.Any("error", err),
			)
			continue
		}
		c.log.Debug("message published", slog.String("channel_id", ch.ID().String()))
	}
	return report
}

func (c *Client) runSubscriber(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// The watcher blocks in ReceiveNext; once any task fails the connection
	// is unusable for all of them, so close it to release the watcher.
	stop := context.AfterFunc(gctx, func() { _ = c.conn.Close() })
	defer stop()

	for _, ch := range c.channels {
		cur := ch.Subscribe()
		g.Go(func() error {
			defer cur.Close()
			return c.forward(gctx, ch, cur)
		})
	}
	g.Go(c.watch)

	err := g.Wait()
	if errors.Is(err, errPeerClosed) {
		c.log.Info("client disconnected")
		return nil
	}
	return err
}

// forward copies messages from one channel cursor to the connection.
func (c *Client) forward(ctx context.Context, ch *channel.Channel, cur *bus.Cursor) error {
	log := c.log.With(slog.String("channel_id", ch.ID().String()))
	for {
		msg, err := cur.Next(ctx)
		if err != nil {
			var lag *bus.LagError
			switch {
			case errors.As(err, &lag):
				c.skipped.Add(lag.Skipped)
				log.Warn("subscriber lagged behind", slog.Uint64("skipped", lag.Skipped))
				continue
			case errors.Is(err, bus.ErrClosed):
				log.Info("channel closed")
				return nil
			default:
				return err
			}
		}

		log.Debug("forwarding message")
		if err := c.send(msg); err != nil {
			log.Warn("client disconnected abruptly", slog.Any("error", err))
			return err
		}
	}
}

// watch reads inbound frames of a subscriber. Subscribers have nothing to
// say, so text is dropped; the point is to notice a close or a dead peer.
func (c *Client) watch() error {
	for {
		frame, err := c.conn.ReceiveNext()
		if err != nil {
			return err
		}
		switch frame.Kind {
		case transport.FrameClose:
			return errPeerClosed
		default:
			c.dropped.Add(1)
			c.log.Warn("subscriber sent a frame, dropping", slog.String("kind", frame.Kind.String()))
		}
	}
}

func (c *Client) send(msg string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.conn.Send(msg); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}
