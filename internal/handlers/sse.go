package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/client"
	"github.com/channelcast/backend/internal/transport"
)

// SSEHandler serves Server-Sent Events streams for browsers and tools that
// only need to subscribe.
type SSEHandler struct {
	registry  *channel.Registry
	heartbeat time.Duration
}

// NewSSEHandler creates an SSEHandler backed by the given registry.
func NewSSEHandler(registry *channel.Registry, heartbeat time.Duration) *SSEHandler {
	return &SSEHandler{registry: registry, heartbeat: heartbeat}
}

// Stream attaches the request as a subscriber to the listed channels. It
// sends an initial "connected" event, then one "message" event per
// delivered message. A heartbeat comment keeps the connection alive through
// proxies.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, ok := parseChannels(ctx, w, r.URL.Query().Get("channels"))
	if !ok {
		return
	}

	conn, err := transport.NewSSEConn(ctx, w)
	if err != nil {
		if errors.Is(err, transport.ErrStreamingUnsupported) {
			writeErrorWithCause(ctx, w, http.StatusInternalServerError, "streaming not supported", err)
		}
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn.Heartbeat(runCtx, h.heartbeat)
	}()
	// The ResponseWriter must not be used after Stream returns.
	defer wg.Wait()
	defer cancel()

	runClient(runCtx, client.RoleSubscriber, h.registry.Resolve(ids), conn)
}
