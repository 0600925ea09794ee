package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/welldanyogia/webhook-relay/internal/auth"
	appctx "github.com/welldanyogia/webhook-relay/internal/context"
)

// AuthMiddleware checks viewer tokens on the event stream.
// When the token service is disabled every request passes through unauthenticated.
type AuthMiddleware struct {
	tokenService *auth.TokenService
}

// NewAuthMiddleware creates a new AuthMiddleware instance
func NewAuthMiddleware(tokenService *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates the viewer token from the token query parameter or the
// Authorization header. EventSource cannot set headers, so the query parameter wins.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.tokenService.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, ok := extractToken(r)
		if !ok {
			WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "Invalid authorization header format")
			return
		}
		if tokenString == "" {
			WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "A viewer token is required")
			return
		}

		claims, err := m.tokenService.ValidateViewerToken(tokenString)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(appctx.WithViewerID(r.Context(), claims.ViewerID())))
	})
}

// extractToken returns false only when an Authorization header is present but malformed.
func extractToken(r *http.Request) (string, bool) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// ExtractViewerID extracts the viewer ID from the request context
func ExtractViewerID(ctx context.Context) (string, bool) {
	return appctx.ExtractViewerID(ctx)
}
