package webhook

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the webhook callback (POST) and handshake (GET) on path.
func RegisterRoutes(r chi.Router, path string, handler *Handler) {
	r.Post(path, handler.HandleEvent)
	r.Get(path, handler.HandleHandshake)
}
