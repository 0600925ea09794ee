// Package webhook receives provider callbacks, checks their signature and publishes
// admitted payloads to the relay. It also answers the provider's subscription handshake.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/welldanyogia/webhook-relay/internal/events"
	"github.com/welldanyogia/webhook-relay/internal/logger"
	"github.com/welldanyogia/webhook-relay/internal/metrics"
	"github.com/welldanyogia/webhook-relay/internal/middleware"
	"github.com/welldanyogia/webhook-relay/internal/repository"
	"github.com/welldanyogia/webhook-relay/internal/signature"
)

// DefaultMaxBodyBytes caps webhook bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

const receiptTimeout = 2 * time.Second

// Publisher is the part of the relay the webhook needs.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// ReceiptRecorder stores an audit record for each webhook.
type ReceiptRecorder interface {
	Record(ctx context.Context, receipt *repository.Receipt) error
}

// Config holds webhook handler configuration.
type Config struct {
	AppSecret    string
	VerifyToken  string
	Policy       signature.Policy
	MaxBodyBytes int64
}

// Response is the body returned to the provider.
type Response struct {
	IsSuccessful bool `json:"isSuccessful"`
}

// Handler serves the webhook endpoint.
type Handler struct {
	config    Config
	publisher Publisher
	verifier  *signature.Verifier
	receipts  ReceiptRecorder
	logger    *slog.Logger
}

// NewHandler creates a webhook handler. receipts may be nil to disable the audit log.
func NewHandler(config Config, publisher Publisher, receipts ReceiptRecorder, log *slog.Logger) *Handler {
	if config.Policy == "" {
		config.Policy = signature.PolicyReject
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		config:    config,
		publisher: publisher,
		verifier:  signature.NewVerifier(config.AppSecret),
		receipts:  receipts,
		logger:    log,
	}
}

// HandleEvent verifies the X-Hub-Signature of the raw body and publishes the payload,
// re-serialized as compact JSON, to the relay.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCorrelationID(r.Context(), h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.WebhooksReceived.WithLabelValues("too_large").Inc()
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Webhook body exceeds the size limit")
			return
		}
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Failed to read webhook body")
		return
	}

	var canonical bytes.Buffer
	if err := json.Compact(&canonical, body); err != nil {
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		middleware.WriteError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Webhook body must be valid JSON")
		return
	}

	receipt := &repository.Receipt{
		PayloadBytes: len(body),
		RemoteAddr:   middleware.ClientIP(r),
	}

	receipt.SignatureValid = h.verifier.Verify(body, r.Header.Get(signature.HeaderName))
	if !receipt.SignatureValid {
		metrics.SignatureFailures.WithLabelValues(string(h.config.Policy)).Inc()
		if h.config.Policy == signature.PolicyReject {
			log.Warn("rejecting webhook with invalid signature",
				slog.Bool("verifier_ready", h.verifier.Configured()),
				slog.String("remote_addr", receipt.RemoteAddr),
			)
			h.record(r.Context(), log, receipt)
			metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
			middleware.WriteError(w, http.StatusForbidden, "SIGNATURE_INVALID", "Webhook signature verification failed")
			return
		}
		log.Warn("admitting webhook with invalid signature", slog.String("remote_addr", receipt.RemoteAddr))
	}

	event := events.New(events.TopicEvents, canonical.Bytes())
	if err := h.publisher.Publish(r.Context(), event); err != nil {
		log.Error("failed to publish webhook event",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		h.record(r.Context(), log, receipt)
		metrics.WebhooksReceived.WithLabelValues("error").Inc()
		writeJSON(w, log, http.StatusInternalServerError, Response{IsSuccessful: false})
		return
	}

	receipt.Admitted = true
	receipt.EventID = &event.ID
	h.record(r.Context(), log, receipt)
	metrics.WebhooksReceived.WithLabelValues("accepted").Inc()

	log.Debug("webhook published", slog.String("event_id", event.ID), slog.Int("payload_bytes", len(body)))
	writeJSON(w, log, http.StatusOK, Response{IsSuccessful: true})
}

// record stores the receipt. Failures are logged and never affect the response.
func (h *Handler) record(ctx context.Context, log *slog.Logger, receipt *repository.Receipt) {
	if h.receipts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptTimeout)
	defer cancel()

	if err := h.receipts.Record(ctx, receipt); err != nil {
		log.Error("failed to record webhook receipt", slog.String("error", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write webhook response", slog.String("error", err.Error()))
	}
}
