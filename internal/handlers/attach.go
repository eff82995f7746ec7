package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/client"
	"github.com/channelcast/backend/internal/config"
	"github.com/channelcast/backend/internal/logging"
	"github.com/channelcast/backend/internal/middleware"
	"github.com/channelcast/backend/internal/transport"
)

// AttachHandler upgrades requests to WebSockets and runs a client engine on
// each connection.
type AttachHandler struct {
	registry *channel.Registry
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewAttachHandler creates an AttachHandler. The WebSocket origin check
// follows the CORS allow list.
func NewAttachHandler(registry *channel.Registry, cfg *config.Config) *AttachHandler {
	return &AttachHandler{
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WSReadBuffer,
			WriteBufferSize: cfg.WSWriteBuffer,
			CheckOrigin:     middleware.OriginChecker(cfg.CORSAllowedOrigins),
		},
	}
}

// Attach validates the role and channel list, then upgrades the connection.
// Nothing is upgraded when validation fails. Channel ids that are well formed
// but unknown are skipped.
func (h *AttachHandler) Attach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	role, err := client.ParseRole(query.Get("role"))
	if err != nil {
		rejectRequest(ctx, w, logging.RejectInvalidRole, "invalid client role, expected publisher or subscriber")
		return
	}

	ids, ok := parseChannels(ctx, w, query.Get("channels"))
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		logging.LogRejectEvent(ctx, logging.RejectUpgradeFailed, err.Error())
		return
	}

	ws := transport.NewWSConn(conn,
		transport.WithWriteTimeout(h.cfg.WSWriteTimeout),
		transport.WithMaxMessageSize(h.cfg.WSMaxMessageSize),
		transport.WithPongWait(h.cfg.PongWait()),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ws.Keepalive(runCtx, h.cfg.WSPingInterval)

	runClient(runCtx, role, h.registry.Resolve(ids), ws)
}

// parseChannels validates the channels query parameter, answering the
// request itself when it is missing or malformed.
func parseChannels(ctx context.Context, w http.ResponseWriter, raw string) ([]uuid.UUID, bool) {
	if strings.TrimSpace(raw) == "" {
		rejectRequest(ctx, w, logging.RejectMissingChannels, "unable to find channel list")
		return nil, false
	}
	ids, err := channel.ParseIDList(raw)
	if err != nil {
		var perr *channel.ParseError
		msg := "unable to parse channel list"
		if errors.As(err, &perr) {
			msg += ": " + perr.Value
		}
		rejectRequest(ctx, w, logging.RejectBadChannelList, msg)
		return nil, false
	}
	return ids, true
}

// runClient drives conn until the client terminates and logs the outcome.
func runClient(ctx context.Context, role client.Role, chans []*channel.Channel, conn transport.Connection) {
	c := client.New(role, chans, conn, client.WithLogger(logging.Logger(ctx)))
	ctx = logging.UpdateRequestAttrs(ctx, c.ID().String(), role.String())

	err := c.Run(ctx)
	stats := c.Stats()
	fields := append(logging.RequestFields(ctx),
		slog.Uint64("received", stats.Received),
		slog.Uint64("published", stats.Published),
		slog.Uint64("undelivered", stats.Undelivered),
		slog.Uint64("sent", stats.Sent),
		slog.Uint64("skipped", stats.Skipped),
		slog.Uint64("dropped", stats.Dropped),
	)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		slog.InfoContext(ctx, "client terminated", fields...)
	case transport.IsConnectionError(err):
		fields = append(fields, slog.Any("error", err))
		slog.InfoContext(ctx, "client connection lost", fields...)
	default:
		fields = append(fields, slog.Any("error", err))
		slog.WarnContext(ctx, "client terminated with error", fields...)
	}
}
