package persistence

import (
	"context"

	"github.com/example/session-coordinator/internal/session"
)

// SessionRepository stores sessions. Get, Update and Delete return
// ErrNotFound for unknown ids. Connectivity failures wrap ErrUnavailable.
type SessionRepository interface {
	FetchAll(ctx context.Context) ([]session.Session, error)
	Get(ctx context.Context, id string) (session.Session, error)
	Create(ctx context.Context, s session.Session) (session.Session, error)
	Update(ctx context.Context, s session.Session) (session.Session, error)
	Delete(ctx context.Context, id string) error
}
