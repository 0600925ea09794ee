package sse

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteOptions holds the middlewares wrapped around the SSE routes. Nil entries are skipped.
type RouteOptions struct {
	// Auth guards both the stream and /stats, since /stats lists viewer ids.
	Auth func(http.Handler) http.Handler
	// ConnectLimit applies to the stream only.
	ConnectLimit func(http.Handler) http.Handler
}

// RegisterRoutes registers the stream at path and the relay stats endpoint.
func RegisterRoutes(r chi.Router, path string, handler *Handler, opts RouteOptions) {
	var stream, stats chi.Middlewares
	if opts.ConnectLimit != nil {
		stream = append(stream, opts.ConnectLimit)
	}
	if opts.Auth != nil {
		stream = append(stream, opts.Auth)
		stats = append(stats, opts.Auth)
	}

	r.With(stream...).Get(path, handler.HandleStream)
	r.With(stats...).Get("/stats", handler.HandleStats)
}
