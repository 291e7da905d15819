package application

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/example/session-coordinator/internal/persistence"
	"github.com/example/session-coordinator/internal/session"
)

var (
	// ErrUnauthorized is returned when no viewer identity accompanies a transition.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested session does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrOffline marks repository failures caused by connectivity. The store is
	// left untouched and the caller may retry.
	ErrOffline = errors.New("application: repository unreachable")
)

// ValidationError is re-exported so callers of the service need not import session.
type ValidationError = session.ValidationError

// ConflictError is re-exported so callers of the service need not import session.
type ConflictError = session.ConflictError

// RepositoryError wraps a failed repository call.
type RepositoryError struct {
	Op      string
	Err     error
	Offline bool
}

func (e *RepositoryError) Error() string {
	if e == nil {
		return ""
	}
	msg := ""
	if e.Err != nil {
		msg = strings.TrimSpace(e.Err.Error())
	}
	switch {
	case e.Offline:
		return "application: " + e.Op + ": repository unreachable"
	case msg == "":
		return "application: " + e.Op + " failed"
	default:
		return "application: " + e.Op + ": " + msg
	}
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// Is reports ErrOffline for connectivity failures.
func (e *RepositoryError) Is(target error) bool {
	return e.Offline && target == ErrOffline
}

func mapRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return &RepositoryError{Op: op, Err: err, Offline: isOffline(err)}
}

func isOffline(err error) bool {
	if errors.Is(err, persistence.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "failed to fetch") || strings.Contains(msg, "connection refused")
}
