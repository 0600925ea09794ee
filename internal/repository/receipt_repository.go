// Package repository stores the webhook receipt audit log in PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/welldanyogia/webhook-relay/internal/metrics"
)

// ReceiptRepository handles webhook receipt database operations
type ReceiptRepository struct {
	db *sqlx.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sqlx.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Record inserts a receipt, filling in ID and ReceivedAt when unset.
func (r *ReceiptRepository) Record(ctx context.Context, receipt *Receipt) error {
	defer metrics.TimeQuery("receipt_insert")()

	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	if receipt.ReceivedAt.IsZero() {
		receipt.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO webhook_receipts (id, event_id, signature_valid, admitted, payload_bytes, remote_addr, received_at)
		VALUES (:id, :event_id, :signature_valid, :admitted, :payload_bytes, :remote_addr, :received_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, receipt); err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// ListRecent returns up to limit receipts, newest first.
func (r *ReceiptRepository) ListRecent(ctx context.Context, limit int) ([]Receipt, error) {
	defer metrics.TimeQuery("receipt_list")()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, event_id, signature_valid, admitted, payload_bytes, remote_addr, received_at
		FROM webhook_receipts
		ORDER BY received_at DESC
		LIMIT $1
	`
	receipts := []Receipt{}
	if err := r.db.SelectContext(ctx, &receipts, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}

// StatsSince counts receipts received at or after since.
func (r *ReceiptRepository) StatsSince(ctx context.Context, since time.Time) (*ReceiptStats, error) {
	defer metrics.TimeQuery("receipt_stats")()

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE admitted) AS admitted,
			COUNT(*) FILTER (WHERE NOT signature_valid) AS invalid_signature
		FROM webhook_receipts
		WHERE received_at >= $1
	`
	var stats ReceiptStats
	if err := r.db.GetContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("failed to get receipt stats: %w", err)
	}
	return &stats, nil
}

// DeleteOlderThan removes receipts received before cutoff and returns how many were deleted.
func (r *ReceiptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	defer metrics.TimeQuery("receipt_delete")()

	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_receipts WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete receipts: %w", err)
	}
	return result.RowsAffected()
}
