// Package store holds the authoritative in-memory sequence of sessions.
//
// Every mutation goes through ReplaceWhere, Prepend, Remove, SetAll or
// PruneExpired. Readers receive deep copies and never hold references into
// the store.
package store

import (
	"sync"
	"time"

	"github.com/example/session-coordinator/internal/session"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	loc      *time.Location
	sessions []session.Session
}

// New returns an empty store that resolves session ranges in loc.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{loc: loc}
}

// Location returns the time zone sessions are scheduled in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// FindByID returns a copy of the session with id.
func (s *Store) FindByID(id string) (session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return session.Session{}, false
	}
	return s.sessions[idx].Clone(), true
}

// ReplaceWhere applies updater to the session with id. The session is
// replaced only when updater reports a change. It returns whether a change
// was applied.
func (s *Store) ReplaceWhere(id string, updater func(session.Session) (session.Session, bool)) bool {
	if updater == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	next, changed := updater(s.sessions[idx].Clone())
	if !changed {
		return false
	}
	next.ID = s.sessions[idx].ID
	s.sessions[idx] = next.Clone()
	return true
}

// Prepend inserts sess at the front, replacing any session with the same id.
func (s *Store) Prepend(sess session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(sess.ID); idx >= 0 {
		s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	}
	s.sessions = append([]session.Session{sess.Clone()}, s.sessions...)
}

// Remove deletes the session with id and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	return true
}

// SetAll replaces the whole sequence.
func (s *Store) SetAll(sessions []session.Session) {
	next := make([]session.Session, 0, len(sessions))
	for _, sess := range sessions {
		next = append(next, sess.Clone())
	}
	s.mu.Lock()
	s.sessions = next
	s.mu.Unlock()
}

// PruneExpired drops sessions that ended more than windowDays before now and
// returns the number remaining.
func (s *Store) PruneExpired(now time.Time, windowDays int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if session.Expired(sess, now, windowDays, s.loc) {
			continue
		}
		kept = append(kept, sess)
	}
	for i := len(kept); i < len(s.sessions); i++ {
		s.sessions[i] = session.Session{}
	}
	s.sessions = kept
	return len(kept)
}

// Snapshot returns copies of all sessions in store order.
func (s *Store) Snapshot() []session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out
}

// Len returns the number of sessions held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}
