package webhook

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/welldanyogia/webhook-relay/internal/logger"
)

// HandshakeRequest is the provider's subscription verification request.
type HandshakeRequest struct {
	Mode        string `validate:"required,eq=subscribe"`
	Challenge   string `validate:"required"`
	VerifyToken string `validate:"required"`
}

var validate = validator.New()

// ParseHandshake reads mode, challenge and verify_token from the query,
// falling back to the hub.* names the provider uses.
func ParseHandshake(query url.Values) HandshakeRequest {
	return HandshakeRequest{
		Mode:        firstOf(query, "mode", "hub.mode"),
		Challenge:   firstOf(query, "challenge", "hub.challenge"),
		VerifyToken: firstOf(query, "verify_token", "hub.verify_token"),
	}
}

func firstOf(query url.Values, keys ...string) string {
	for _, key := range keys {
		if v := query.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// Accepts reports whether req is a well-formed subscribe request carrying expectedToken.
// An empty expectedToken accepts nothing.
func (req HandshakeRequest) Accepts(expectedToken string) bool {
	if expectedToken == "" {
		return false
	}
	if err := validate.Struct(req); err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(req.VerifyToken), []byte(expectedToken)) == 1
}

// HandleHandshake answers the provider's GET verification with the challenge as
// plain text, or 400 with an empty body.
func (h *Handler) HandleHandshake(w http.ResponseWriter, r *http.Request) {
	req := ParseHandshake(r.URL.Query())
	if !req.Accepts(h.config.VerifyToken) {
		logger.WithCorrelationID(r.Context(), h.logger).Warn("webhook handshake rejected",
			slog.String("mode", req.Mode),
			slog.Bool("challenge_present", req.Challenge != ""),
		)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("webhook handshake accepted")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(req.Challenge))
}
