// Package api serves the read-only receipt audit API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/welldanyogia/webhook-relay/internal/logger"
	"github.com/welldanyogia/webhook-relay/internal/middleware"
	"github.com/welldanyogia/webhook-relay/internal/repository"
)

// Error codes for receipt operations
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

const (
	defaultListLimit   = 50
	defaultStatsWindow = 24 * time.Hour
)

// ReceiptReader is the read side of the receipt repository.
type ReceiptReader interface {
	ListRecent(ctx context.Context, limit int) ([]repository.Receipt, error)
	StatsSince(ctx context.Context, since time.Time) (*repository.ReceiptStats, error)
}

// ReceiptHandler handles HTTP requests for the receipt audit endpoints
type ReceiptHandler struct {
	receipts ReceiptReader
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewReceiptHandler creates a new ReceiptHandler instance
func NewReceiptHandler(receipts ReceiptReader, logger *slog.Logger) *ReceiptHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptHandler{
		receipts: receipts,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// ListReceipts handles GET /api/v1/receipts
func (h *ReceiptHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	query := ListReceiptsQuery{Limit: defaultListLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, CodeValidationError, "limit must be an integer")
			return
		}
		query.Limit = limit
	}
	if err := h.validate.Struct(query); err != nil {
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, CodeValidationError, "Invalid query parameters",
			map[string]any{"limit": "must be between 1 and 1000"})
		return
	}

	receipts, err := h.receipts.ListRecent(r.Context(), query.Limit)
	if err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).Error("failed to list receipts", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, CodeInternalError, "Failed to list receipts")
		return
	}

	resp := ListReceiptsResponse{Receipts: make([]ReceiptResponse, 0, len(receipts))}
	for _, receipt := range receipts {
		resp.Receipts = append(resp.Receipts, toReceiptResponse(receipt))
	}
	resp.Count = len(resp.Receipts)

	h.writeSuccess(w, resp)
}

// GetReceiptStats handles GET /api/v1/receipts/stats?window=24h
func (h *ReceiptHandler) GetReceiptStats(w http.ResponseWriter, r *http.Request) {
	query := ReceiptStatsQuery{Window: defaultStatsWindow}
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, CodeValidationError, "window must be a duration such as 1h")
			return
		}
		query.Window = window
	}
	if err := h.validate.Struct(query); err != nil {
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, CodeValidationError, "Invalid query parameters",
			map[string]any{"window": "must be positive and at most 720h"})
		return
	}

	since := h.now().UTC().Add(-query.Window)
	stats, err := h.receipts.StatsSince(r.Context(), since)
	if err != nil {
		logger.WithCorrelationID(r.Context(), h.logger).Error("failed to get receipt stats", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, CodeInternalError, "Failed to get receipt stats")
		return
	}

	h.writeSuccess(w, ReceiptStatsResponse{
		Since:            since,
		Total:            stats.Total,
		Admitted:         stats.Admitted,
		InvalidSignature: stats.InvalidSignature,
	})
}

func (h *ReceiptHandler) writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		h.logger.Debug("failed to write receipt response", slog.String("error", err.Error()))
	}
}
