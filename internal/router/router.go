package router

import (
	"context"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/channelcast/backend/internal/channel"
	"github.com/channelcast/backend/internal/config"
	"github.com/channelcast/backend/internal/handlers"
	"github.com/channelcast/backend/internal/middleware"
)

// New builds the HTTP handler. ctx bounds background work such as the rate
// limiter's visitor cleanup.
func New(ctx context.Context, cfg *config.Config, registry *channel.Registry) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(middleware.NewRealIP(cfg.TrustedProxies).Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.SkipHealth(chimiddleware.Logger))
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Handlers
	channelHandler := handlers.NewChannelHandler(registry)
	attachHandler := handlers.NewAttachHandler(registry, cfg)
	sseHandler := handlers.NewSSEHandler(registry, cfg.SSEHeartbeatInterval)

	r.Get("/api/health", channelHandler.Health)

	// Channels are never deleted, so creation is rate limited per client IP.
	if cfg.RateLimitPerMinute > 0 {
		createLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute)
		r.With(createLimiter.Middleware).Post("/createChannel", channelHandler.Create)
	} else {
		r.Post("/createChannel", channelHandler.Create)
	}
	r.Get("/getChannels", channelHandler.List)

	r.Get("/attach", attachHandler.Attach)
	r.Get("/stream", sseHandler.Stream)

	return r
}
