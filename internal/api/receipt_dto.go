package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/webhook-relay/internal/repository"
)

// APIResponse represents the standard API response format
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ListReceiptsQuery holds the query parameters for GET /api/v1/receipts
type ListReceiptsQuery struct {
	Limit int `validate:"gte=1,lte=1000"`
}

// ReceiptStatsQuery holds the query parameters for GET /api/v1/receipts/stats
type ReceiptStatsQuery struct {
	Window time.Duration `validate:"gt=0,lte=720h"`
}

// ReceiptResponse represents a webhook receipt in API responses
type ReceiptResponse struct {
	ID             uuid.UUID `json:"id"`
	EventID        *string   `json:"event_id,omitempty"`
	SignatureValid bool      `json:"signature_valid"`
	Admitted       bool      `json:"admitted"`
	PayloadBytes   int       `json:"payload_bytes"`
	RemoteAddr     string    `json:"remote_addr"`
	ReceivedAt     time.Time `json:"received_at"`
}

// ListReceiptsResponse is the data of GET /api/v1/receipts
type ListReceiptsResponse struct {
	Receipts []ReceiptResponse `json:"receipts"`
	Count    int               `json:"count"`
}

// ReceiptStatsResponse is the data of GET /api/v1/receipts/stats
type ReceiptStatsResponse struct {
	Since            time.Time `json:"since"`
	Total            int       `json:"total"`
	Admitted         int       `json:"admitted"`
	InvalidSignature int       `json:"invalid_signature"`
}

func toReceiptResponse(r repository.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:             r.ID,
		EventID:        r.EventID,
		SignatureValid: r.SignatureValid,
		Admitted:       r.Admitted,
		PayloadBytes:   r.PayloadBytes,
		RemoteAddr:     r.RemoteAddr,
		ReceivedAt:     r.ReceivedAt,
	}
}
