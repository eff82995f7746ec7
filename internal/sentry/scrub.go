// Package sentry wires optional error reporting and scrubs events before
// they leave the process. Published message bodies and channel ids never
// reach Sentry: without authentication a channel id is the only thing
// standing between a stranger and a channel.
package sentry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const filtered = "[Filtered]"

// sensitiveHeaders are HTTP headers that should be redacted from Sentry events.
var sensitiveHeaders = map[string]bool{
	"Authorization":     true,
	"Cookie":            true,
	"Set-Cookie":        true,
	"Sec-Websocket-Key": true,
}

// sensitiveKeys are field names that may carry channel ids or message
// payloads in tags or breadcrumb metadata.
var sensitiveKeys = map[string]bool{
	"channels":   true,
	"channel_id": true,
	"message":    true,
	"payload":    true,
	"text":       true,
	"token":      true,
}

// Init starts the Sentry client when dsn is set. It returns a flush
// function for shutdown; with an empty dsn both are no-ops.
func Init(dsn, environment string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		BeforeSend:       ScrubEvent,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// ScrubEvent removes sensitive data from a Sentry event before it is sent.
// It redacts sensitive headers, strips request bodies and query strings,
// and scrubs tags and breadcrumbs.
func ScrubEvent(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for header := range event.Request.Headers {
			if sensitiveHeaders[header] {
				event.Request.Headers[header] = filtered
			}
		}
		event.Request.Data = ""
		if event.Request.QueryString != "" {
			event.Request.QueryString = filtered
		}
	}

	for key := range event.Tags {
		if sensitiveKeys[key] {
			event.Tags[key] = filtered
		}
	}

	for i := range event.Breadcrumbs {
		for key := range event.Breadcrumbs[i].Data {
			if sensitiveKeys[key] {
				event.Breadcrumbs[i].Data[key] = filtered
			}
		}
	}

	return event
}
