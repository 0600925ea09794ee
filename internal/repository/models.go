package repository

import (
	"time"

	"github.com/google/uuid"
)

// Receipt records one inbound webhook delivery attempt.
type Receipt struct {
	ID             uuid.UUID `db:"id" json:"id"`
	EventID        *string   `db:"event_id" json:"event_id,omitempty"` // nil when nothing was published
	SignatureValid bool      `db:"signature_valid" json:"signature_valid"`
	Admitted       bool      `db:"admitted" json:"admitted"`
	PayloadBytes   int       `db:"payload_bytes" json:"payload_bytes"`
	RemoteAddr     string    `db:"remote_addr" json:"remote_addr"`
	ReceivedAt     time.Time `db:"received_at" json:"received_at"`
}

// ReceiptStats summarizes receipts since a point in time.
type ReceiptStats struct {
	Total            int `db:"total" json:"total"`
	Admitted         int `db:"admitted" json:"admitted"`
	InvalidSignature int `db:"invalid_signature" json:"invalid_signature"`
}
