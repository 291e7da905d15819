package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/session-coordinator/internal/persistence"
	"github.com/example/session-coordinator/internal/session"
)

const sessionColumns = `id, title, location, city, session_date, start_time, duration_hours,
	skill_level, capacity, total_cost, attendee_count, participants, guests, rsvp_deadline,
	owner_identity, owner_name, notes, payment_link, court_booked, history, created_at, updated_at`

const insertSessionQuery = `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES (:id, :title, :location, :city, :session_date, :start_time, :duration_hours,
		:skill_level, :capacity, :total_cost, :attendee_count, :participants, :guests, :rsvp_deadline,
		:owner_identity, :owner_name, :notes, :payment_link, :court_booked, :history, :created_at, :updated_at)
`

const updateSessionQuery = `
	UPDATE sessions
	SET title = :title, location = :location, city = :city, session_date = :session_date,
		start_time = :start_time, duration_hours = :duration_hours, skill_level = :skill_level,
		capacity = :capacity, total_cost = :total_cost, attendee_count = :attendee_count,
		participants = :participants, guests = :guests, rsvp_deadline = :rsvp_deadline,
		owner_name = :owner_name, notes = :notes, payment_link = :payment_link,
		court_booked = :court_booked, history = :history, updated_at = :updated_at
	WHERE id = :id
`

// SessionRepository implements persistence.SessionRepository over sqlx.
type SessionRepository struct {
	db    *sqlx.DB
	retry *RetryHelper
}

var _ persistence.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a repository on db.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{
		db:    db,
		retry: NewRetryHelper(DefaultRetryConfig()),
	}
}

// FetchAll returns every stored session, newest schedule first. A row that
// cannot be decoded fails the whole read.
func (r *SessionRepository) FetchAll(ctx context.Context) ([]session.Session, error) {
	var records []persistence.SessionRecord
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY session_date DESC, start_time DESC`)
	err := r.retry.WithRetry(ctx, func() error {
		records = records[:0]
		return r.db.SelectContext(ctx, &records, query)
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}

	sessions := make([]session.Session, 0, len(records))
	for _, rec := range records {
		s, err := rec.ToSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Get loads one session.
func (r *SessionRepository) Get(ctx context.Context, id string) (session.Session, error) {
	var rec persistence.SessionRecord
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`)
	err := r.retry.WithRetry(ctx, func() error {
		return r.db.GetContext(ctx, &rec, query, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, persistence.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("sqlite: get session %s: %w", id, err)
	}
	return rec.ToSession()
}

// Create inserts s and returns it as stored.
func (r *SessionRepository) Create(ctx context.Context, s session.Session) (session.Session, error) {
	if s.ID == "" || s.OwnerIdentity == "" {
		return session.Session{}, persistence.ErrConstraintViolation
	}
	rec, err := persistence.FromSession(s)
	if err != nil {
		return session.Session{}, err
	}

	err = r.retry.WithRetry(ctx, func() error {
		_, err := r.db.NamedExecContext(ctx, insertSessionQuery, rec)
		return err
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlite: create session %s: %w", s.ID, err)
	}
	return rec.ToSession()
}

// Update overwrites the mutable columns of s. The owner and creation time
// are fixed at insert.
func (r *SessionRepository) Update(ctx context.Context, s session.Session) (session.Session, error) {
	if s.ID == "" {
		return session.Session{}, persistence.ErrConstraintViolation
	}
	rec, err := persistence.FromSession(s)
	if err != nil {
		return session.Session{}, err
	}

	var affected int64
	err = r.retry.WithRetry(ctx, func() error {
		res, err := r.db.NamedExecContext(ctx, updateSessionQuery, rec)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlite: update session %s: %w", s.ID, err)
	}
	if affected == 0 {
		return session.Session{}, persistence.ErrNotFound
	}
	return rec.ToSession()
}

// Delete removes the session with id.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	var affected int64
	query := r.db.Rebind(`DELETE FROM sessions WHERE id = ?`)
	err := r.retry.WithRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite: delete session %s: %w", id, err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
