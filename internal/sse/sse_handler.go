package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/welldanyogia/webhook-relay/internal/events"
	"github.com/welldanyogia/webhook-relay/internal/logger"
	"github.com/welldanyogia/webhook-relay/internal/middleware"
	"github.com/welldanyogia/webhook-relay/internal/relay"
)

// Handler implements the SSE stream endpoint on top of the relay.
type Handler struct {
	config Config
	relay  *relay.Relay
	logger *slog.Logger
}

// NewHandler creates a new SSE handler.
func NewHandler(config Config, r *relay.Relay, log *slog.Logger) *Handler {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		config: config,
		relay:  r,
		logger: log,
	}
}

// HandleStream subscribes the client to the relay and writes queued events until the
// client goes away, the relay drops the subscriber, a write fails, or the connection
// timeout elapses. The subscriber is always unsubscribed on return.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCorrelationID(r.Context(), h.logger)

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "STREAMING_NOT_SUPPORTED", ErrStreamingNotSupported.Error())
		return
	}

	viewerID, _ := middleware.ExtractViewerID(r.Context())
	sub, err := h.relay.Subscribe(relay.SubscribeOptions{
		ViewerID:    viewerID,
		LastEventID: r.Header.Get("Last-Event-ID"),
	})
	if err != nil {
		h.writeSubscribeError(w, err)
		return
	}
	defer h.relay.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	if err := write(w, flusher, FormatComment("connected")); err != nil {
		return
	}

	log.Debug("stream opened",
		slog.String("subscriber_id", sub.ID),
		slog.String("viewer_id", viewerID),
	)

	reason := h.pump(w, flusher, r, sub)

	log.Debug("stream closed",
		slog.String("subscriber_id", sub.ID),
		slog.String("reason", reason),
	)
}

// pump is the single writer for the response; it returns why the stream ended.
func (h *Handler) pump(w io.Writer, flusher http.Flusher, r *http.Request, sub *relay.Subscriber) string {
	heartbeat := time.NewTicker(h.config.HeartbeatInterval)
	defer heartbeat.Stop()

	var timeout <-chan time.Time
	if h.config.ConnectionTimeout > 0 {
		timer := time.NewTimer(h.config.ConnectionTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-r.Context().Done():
			return "client_closed"
		case <-sub.Done():
			return "removed"
		case <-timeout:
			return "timeout"
		case <-heartbeat.C:
			if err := write(w, flusher, FormatComment("ping")); err != nil {
				return "write_failed"
			}
		case ev := <-sub.Events():
			// select is random when both are ready; a removed subscriber gets nothing more.
			if sub.IsClosed() {
				return "removed"
			}
			if err := write(w, flusher, FormatSSEEvent(ev)); err != nil {
				return "write_failed"
			}
		}
	}
}

func (h *Handler) writeSubscribeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrTooManySubscribers):
		middleware.WriteError(w, http.StatusServiceUnavailable, "TOO_MANY_SUBSCRIBERS", "The stream has reached its subscriber limit")
	case errors.Is(err, relay.ErrRelayClosed):
		middleware.WriteError(w, http.StatusServiceUnavailable, "RELAY_CLOSED", "The relay is shutting down")
	default:
		h.logger.Error("subscribe failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to open stream")
	}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	relay.Stats
	Connections []relay.SubscriberInfo `json:"connections"`
}

// HandleStats reports relay counters and the live subscribers.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(StatsResponse{
		Stats:       h.relay.Stats(),
		Connections: h.relay.Subscribers(),
	}); err != nil {
		h.logger.Debug("failed to write stats response", slog.String("error", err.Error()))
	}
}

func write(w io.Writer, flusher http.Flusher, frame string) error {
	if _, err := io.WriteString(w, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	flusher.Flush()
	return nil
}

// FormatSSEEvent formats an event as an SSE message:
//
//	event: events
//	id: <id>
//	data: <payload line>
//
// A payload containing line breaks is split across several data lines.
func FormatSSEEvent(event events.Event) string {
	topic := event.Topic
	if topic == "" {
		topic = events.TopicEvents
	}

	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(topic)
	b.WriteString("\nid: ")
	b.WriteString(event.ID)
	b.WriteByte('\n')
	for _, line := range splitLines(string(event.Data)) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// FormatComment formats an SSE comment line, which clients ignore.
func FormatComment(text string) string {
	return ": " + text + "\n\n"
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
