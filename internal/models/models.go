// Package models holds the JSON shapes exchanged over HTTP.
package models

import "github.com/channelcast/backend/internal/channel"

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Channels int    `json:"channels"`
}

// ChannelListResponse is the body of GET /getChannels.
type ChannelListResponse []channel.Info
