// Package memory provides an in-process session repository for development
// and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/example/session-coordinator/internal/persistence"
	"github.com/example/session-coordinator/internal/session"
)

// Storage keeps sessions in a map guarded by a mutex. Values are cloned on
// the way in and out.
type Storage struct {
	mu          sync.RWMutex
	sessions    map[string]session.Session
	unavailable bool
}

var _ persistence.SessionRepository = (*Storage)(nil)

// New returns storage seeded with sessions.
func New(seed ...session.Session) *Storage {
	s := &Storage{sessions: make(map[string]session.Session, len(seed))}
	for _, sess := range seed {
		s.sessions[sess.ID] = sess.Clone()
	}
	return s
}

// SetUnavailable makes every call fail with persistence.ErrUnavailable until
// cleared.
func (s *Storage) SetUnavailable(down bool) {
	s.mu.Lock()
	s.unavailable = down
	s.mu.Unlock()
}

// FetchAll returns all sessions ordered by creation time, newest first.
func (s *Storage) FetchAll(ctx context.Context) ([]session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(ctx); err != nil {
		return nil, err
	}

	out := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get retrieves a session by id.
func (s *Storage) Get(ctx context.Context, id string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(ctx); err != nil {
		return session.Session{}, err
	}

	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, persistence.ErrNotFound
	}
	return sess.Clone(), nil
}

// Create stores a new session.
func (s *Storage) Create(ctx context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return session.Session{}, err
	}

	if sess.ID == "" || sess.OwnerIdentity == "" {
		return session.Session{}, persistence.ErrConstraintViolation
	}
	if _, ok := s.sessions[sess.ID]; ok {
		return session.Session{}, fmt.Errorf("%w: session %s", persistence.ErrDuplicate, sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return sess.Clone(), nil
}

// Update replaces an existing session. Owner and creation time are kept.
func (s *Storage) Update(ctx context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return session.Session{}, err
	}

	existing, ok := s.sessions[sess.ID]
	if !ok {
		return session.Session{}, persistence.ErrNotFound
	}
	stored := sess.Clone()
	stored.OwnerIdentity = existing.OwnerIdentity
	stored.CreatedAt = existing.CreatedAt
	s.sessions[sess.ID] = stored
	return stored.Clone(), nil
}

// Delete removes a session.
func (s *Storage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return err
	}

	if _, ok := s.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Storage) checkLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	if s.unavailable {
		return fmt.Errorf("%w: storage offline", persistence.ErrUnavailable)
	}
	return nil
}
