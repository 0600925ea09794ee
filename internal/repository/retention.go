package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ReceiptPruner deletes receipts older than a cutoff.
type ReceiptPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionWorker periodically removes receipts older than the retention window.
type RetentionWorker struct {
	pruner    ReceiptPruner
	retention time.Duration
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// NewRetentionWorker creates a worker keeping receipts for retention.
func NewRetentionWorker(pruner ReceiptPruner, retention time.Duration, logger *slog.Logger) *RetentionWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		pruner:    pruner,
		retention: retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately and then every interval until Stop.
func (w *RetentionWorker) Start(interval time.Duration) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		w.prune()

		for {
			select {
			case <-ticker.C:
				w.prune()
			case <-w.stopCh:
				return
			}
		}
	}()

	w.logger.Info("receipt retention worker started",
		slog.Duration("retention", w.retention),
		slog.Duration("interval", interval),
	)
}

// Stop stops the worker and waits for an in-flight prune to finish.
func (w *RetentionWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.done
}

// Prune deletes expired receipts once and returns how many were removed.
func (w *RetentionWorker) Prune(ctx context.Context) (int64, error) {
	return w.pruner.DeleteOlderThan(ctx, time.Now().UTC().Add(-w.retention))
}

func (w *RetentionWorker) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := w.Prune(ctx)
	if err != nil {
		w.logger.Error("failed to prune receipts", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		w.logger.Info("pruned expired receipts", slog.Int64("deleted", deleted))
	}
}
