// Package auth issues and validates the optional viewer tokens that gate the event stream.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	ViewerTokenType TokenType = "viewer"
)

var (
	// ErrTokensDisabled is returned when no signing secret is configured.
	ErrTokensDisabled = errors.New("viewer tokens are not configured")
	// ErrInvalidToken is returned for any token that fails validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents the JWT claims structure
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// ViewerID returns the viewer ID from the Subject claim
func (c *Claims) ViewerID() string {
	return c.Subject
}

// TokenService handles viewer token generation and validation
type TokenService struct {
	secret string
	expiry time.Duration
	issuer string
}

// TokenServiceConfig holds configuration for TokenService
type TokenServiceConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	return &TokenService{
		secret: cfg.Secret,
		expiry: cfg.Expiry,
		issuer: cfg.Issuer,
	}
}

// Enabled reports whether the stream requires viewer tokens.
func (s *TokenService) Enabled() bool {
	return s != nil && s.secret != ""
}

// GenerateViewerToken signs a token for viewerID. An empty viewerID gets a random one.
func (s *TokenService) GenerateViewerToken(viewerID string) (string, error) {
	if !s.Enabled() {
		return "", ErrTokensDisabled
	}
	if viewerID == "" {
		viewerID = uuid.New().String()
	}

	now := time.Now()
	claims := Claims{
		Type: ViewerTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   viewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// ValidateViewerToken validates a viewer token and returns the claims
func (s *TokenService) ValidateViewerToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrTokensDisabled
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != ViewerTokenType {
		return nil, errors.Join(ErrInvalidToken, errors.New("invalid token type"))
	}

	return claims, nil
}

// Expiry returns the viewer token lifetime
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}
