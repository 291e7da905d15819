package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/example/session-coordinator/internal/persistence"
)

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	if err := mapRepoError("update session", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	if err := mapRepoError("get session", fmt.Errorf("lookup: %w", persistence.ErrNotFound)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	offline := []error{
		fmt.Errorf("dial: %w", persistence.ErrUnavailable),
		context.DeadlineExceeded,
		errors.New("Failed to fetch"),
		&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("i/o timeout")},
		errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
	}
	for _, cause := range offline {
		err := mapRepoError("create session", cause)
		if !errors.Is(err, ErrOffline) {
			t.Fatalf("expected %v to map to ErrOffline, got %v", cause, err)
		}
		if got := ErrorKind(err); got != "offline" {
			t.Fatalf("expected offline kind, got %q", got)
		}
	}

	online := []error{
		errors.New("prefetch of owner profile failed"),
		errors.New("network policy rejected the write"),
		errors.New("invalid timeout value in config"),
		context.Canceled,
	}
	for _, cause := range online {
		if err := mapRepoError("update session", cause); errors.Is(err, ErrOffline) {
			t.Fatalf("expected %v not to map to ErrOffline", cause)
		}
	}

	err := mapRepoError("delete session", errors.New("row locked by trigger"))
	if errors.Is(err, ErrOffline) {
		t.Fatalf("generic failure must not be offline")
	}
	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected *RepositoryError, got %T", err)
	}
	if got := err.Error(); got != "application: delete session: row locked by trigger" {
		t.Fatalf("expected underlying message, got %q", got)
	}
	if got := (&RepositoryError{Op: "fetch sessions", Err: errors.New(" ")}).Error(); got != "application: fetch sessions failed" {
		t.Fatalf("expected fallback message, got %q", got)
	}
}
