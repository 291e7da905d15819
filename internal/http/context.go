package http

import (
	"context"
	"log/slog"

	"github.com/example/session-coordinator/internal/logging"
	"github.com/example/session-coordinator/internal/session"
)

type contextKey string

const (
	viewerContextKey    contextKey = "viewer"
	sessionIDContextKey contextKey = "session_id"
)

// ContextWithViewer returns a derived context containing the verified viewer.
func ContextWithViewer(ctx context.Context, viewer session.Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, viewer)
}

// ViewerFromContext extracts the verified viewer. Anonymous requests yield
// the zero Viewer and false.
func ViewerFromContext(ctx context.Context) (session.Viewer, bool) {
	viewer, ok := ctx.Value(viewerContextKey).(session.Viewer)
	return viewer, ok
}

// ContextWithSessionID injects the session identifier resolved from the request path.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, id)
}

// SessionIDFromContext extracts a session identifier previously associated with the context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request-scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request-scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
