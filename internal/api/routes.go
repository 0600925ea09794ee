package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterReceiptRoutes registers the receipt audit routes behind authMiddleware.
func RegisterReceiptRoutes(r chi.Router, handler *ReceiptHandler, authMiddleware func(next http.Handler) http.Handler) {
	r.Route("/receipts", func(r chi.Router) {
		r.Use(authMiddleware)

		// GET /api/v1/receipts - newest receipts first
		r.Get("/", handler.ListReceipts)

		// GET /api/v1/receipts/stats - counts over a window
		r.Get("/stats", handler.GetReceiptStats)
	})
}
