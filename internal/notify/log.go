package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/session-coordinator/internal/application"
	"github.com/example/session-coordinator/internal/logging"
)

// Log records notifications through slog. It is the sink used when no broker
// is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Notify implements application.Notifier.
func (l *Log) Notify(ctx context.Context, n application.Notification) error {
	logging.FromContextOr(ctx, l.logger).InfoContext(ctx, "notification",
		"notification_type", n.Type,
		"session_id", n.Session.ID,
		"actor", n.Actor.Identity,
		"recipients", len(n.Audience.Identities),
		"title", n.Title,
	)
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []application.Notifier

// Notify implements application.Notifier.
func (f Fanout) Notify(ctx context.Context, n application.Notification) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
