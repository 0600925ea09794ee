package context

import (
	"context"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ViewerIDKey is the context key for the authenticated stream viewer
	ViewerIDKey ContextKey = "viewer_id"
)

// WithViewerID returns a copy of ctx carrying viewerID.
func WithViewerID(ctx context.Context, viewerID string) context.Context {
	return context.WithValue(ctx, ViewerIDKey, viewerID)
}

// ExtractViewerID extracts the viewer ID from the request context
func ExtractViewerID(ctx context.Context) (string, bool) {
	viewerID, ok := ctx.Value(ViewerIDKey).(string)
	return viewerID, ok
}
