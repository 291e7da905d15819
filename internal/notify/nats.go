package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/example/session-coordinator/internal/application"
	"github.com/example/session-coordinator/internal/logging"
)

// DefaultSubjectPrefix namespaces published subjects, e.g. "session.joined".
const DefaultSubjectPrefix = "session"

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the JSON payload published for each notification.
type Event struct {
	EventID    string                       `json:"event_id"`
	EventType  string                       `json:"event_type"`
	Actor      application.Actor            `json:"actor"`
	Session    application.Summary          `json:"session"`
	Audience   application.Audience         `json:"audience"`
	Title      string                       `json:"title"`
	Body       string                       `json:"body"`
	OccurredAt time.Time                    `json:"occurred_at"`
	Type       application.NotificationType `json:"notification_type"`
}

// NATS publishes notifications as JSON events.
type NATS struct {
	conn   Publisher
	prefix string
	newID  func() string
	logger *slog.Logger
}

// NewNATS wraps conn. An empty prefix uses DefaultSubjectPrefix.
func NewNATS(conn Publisher, prefix string, logger *slog.Logger) *NATS {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{conn: conn, prefix: prefix, newID: uuid.NewString, logger: logger}
}

// Connect dials url and names the connection after the service.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect %s: %w", url, err)
	}
	return conn, nil
}

// Subject maps a notification type to its subject: event.joined becomes
// "<prefix>.joined".
func (n *NATS) Subject(t application.NotificationType) string {
	return n.prefix + "." + strings.TrimPrefix(string(t), "event.")
}

// Notify implements application.Notifier.
func (n *NATS) Notify(ctx context.Context, notification application.Notification) error {
	if n == nil || n.conn == nil {
		return errors.New("notify: nats connection not configured")
	}
	subject := n.Subject(notification.Type)
	event := Event{
		EventID:    n.newID(),
		EventType:  subject,
		Type:       notification.Type,
		Actor:      notification.Actor,
		Session:    notification.Session,
		Audience:   notification.Audience,
		Title:      notification.Title,
		Body:       notification.Body,
		OccurredAt: notification.OccurredAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", subject, err)
	}
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("notify: publish %s: %w", subject, err)
	}
	logging.FromContextOr(ctx, n.logger).DebugContext(ctx, "event published",
		"subject", subject,
		"event_id", event.EventID,
		"session_id", notification.Session.ID,
	)
	return nil
}
