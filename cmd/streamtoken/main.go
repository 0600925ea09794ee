// Command streamtoken mints viewer tokens for the event stream when
// STREAM_TOKEN_SECRET is set.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/welldanyogia/webhook-relay/internal/auth"
	"github.com/welldanyogia/webhook-relay/internal/config"
)

// tokenOutput is the -json output format.
type tokenOutput struct {
	Token     string    `json:"token"`
	ViewerID  string    `json:"viewer_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	cfg := config.Load()

	var (
		viewerID = flag.String("viewer", "", "Viewer ID to embed (random when empty)")
		expiry   = flag.Duration("expiry", cfg.Stream.TokenExpiry, "Token lifetime")
		asJSON   = flag.Bool("json", false, "Print token, viewer id and expiry as JSON")
	)
	flag.Parse()

	stream := cfg.Stream
	stream.TokenExpiry = *expiry

	if err := mint(os.Stdout, stream, *viewerID, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "streamtoken: %v\n", err)
		os.Exit(1)
	}
}

// mint signs a viewer token with the stream settings and writes it to w.
func mint(w io.Writer, stream config.StreamConfig, viewerID string, asJSON bool) error {
	if stream.TokenExpiry <= 0 {
		return fmt.Errorf("expiry must be positive, got %s", stream.TokenExpiry)
	}

	svc := auth.NewTokenService(auth.TokenServiceConfig{
		Secret: stream.TokenSecret,
		Expiry: stream.TokenExpiry,
		Issuer: stream.TokenIssuer,
	})

	token, err := svc.GenerateViewerToken(viewerID)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	if !asJSON {
		_, err = fmt.Fprintln(w, token)
		return err
	}

	claims, err := svc.ValidateViewerToken(token)
	if err != nil {
		return fmt.Errorf("generated token does not validate: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenOutput{
		Token:     token,
		ViewerID:  claims.ViewerID(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	})
}
