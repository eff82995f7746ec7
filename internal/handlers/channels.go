package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/logging"
	"github.com/channelcast/backend/internal/models"
)

// ChannelHandler serves channel creation and listing.
type ChannelHandler struct {
	registry *channel.Registry
}

// NewChannelHandler creates a ChannelHandler backed by the given registry.
func NewChannelHandler(registry *channel.Registry) *ChannelHandler {
	return &ChannelHandler{registry: registry}
}

// Create registers a channel from the name and optional capacity parameters,
// read from the query string or a form body, and answers with the new id as
// plain text.
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		rejectRequest(r.Context(), w, logging.RejectBadChannelParams, "unable to find channel name")
		return
	}

	capacity := 0
	if raw := strings.TrimSpace(r.FormValue("capacity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			rejectRequest(r.Context(), w, logging.RejectBadChannelParams, "capacity must be an integer")
			return
		}
		capacity = n
	}

	id, err := h.registry.Create(name, capacity)
	if err != nil {
		if errors.Is(err, channel.ErrValidation) {
			rejectRequest(r.Context(), w, logging.RejectBadChannelParams, err.Error())
			return
		}
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to create channel", err)
		return
	}

	writeText(w, http.StatusCreated, id.String())
}

// List returns every known channel.
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ChannelListResponse(h.registry.List()))
}

// Health reports liveness and the number of registered channels.
func (h *ChannelHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Channels: h.registry.Len()})
}
