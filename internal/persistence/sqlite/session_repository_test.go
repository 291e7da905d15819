package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/example/session-coordinator/internal/persistence"
	"github.com/example/session-coordinator/internal/session"
)

var recordColumns = []string{
	"id", "title", "location", "city", "session_date", "start_time", "duration_hours",
	"skill_level", "capacity", "total_cost", "attendee_count", "participants", "guests", "rsvp_deadline",
	"owner_identity", "owner_name", "notes", "payment_link", "court_booked", "history", "created_at", "updated_at",
}

func newMockRepository(t *testing.T) (*SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewSessionRepository(sqlx.NewDb(db, "sqlmock"))
	repo.retry = NewRetryHelper(RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})
	return repo, mock
}

func sampleSession() session.Session {
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	deadline := time.Date(2026, 5, 3, 8, 0, 0, 0, time.UTC)
	s := session.Session{
		ID:            "session-1",
		Title:         "Evening doubles",
		Location:      "Riverside Courts",
		City:          "Berlin",
		Date:          "2026-05-03",
		StartTime:     "18:00",
		DurationHours: 2,
		Skill:         session.SkillAdvanced,
		Capacity:      4,
		TotalCost:     60,
		AttendeeCount: 2,
		Participants: []session.Participant{
			{Identity: "alice@example.com", DisplayName: "Alice", JoinedAt: created},
		},
		Guests:        []session.Guest{{ID: "guest-1", Name: "Erin", CreatedAt: created}},
		RSVPDeadline:  &deadline,
		OwnerIdentity: "alice@example.com",
		OwnerName:     "Alice",
		CourtBooked:   true,
		History:       session.HistoryFrom(session.MaxHistoryEntries, []session.HistoryEntry{{Timestamp: created, Type: session.EventCreate}}),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	return s
}

func recordRow(t *testing.T, s session.Session) []driver.Value {
	t.Helper()
	rec, err := persistence.FromSession(s)
	require.NoError(t, err)
	var deadline any
	if rec.RSVPDeadline.Valid {
		deadline = rec.RSVPDeadline.String
	}
	return []driver.Value{
		rec.ID, rec.Title, rec.Location, rec.City, rec.Date, rec.StartTime, rec.DurationHours,
		rec.Skill, rec.Capacity, rec.TotalCost, rec.AttendeeCount, rec.Participants, rec.Guests, deadline,
		rec.OwnerIdentity, rec.OwnerName, rec.Notes, rec.PaymentLink, rec.CourtBooked, rec.History, rec.CreatedAt, rec.UpdatedAt,
	}
}

func TestSessionRepository_Get(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	want := sampleSession()

	rows := sqlmock.NewRows(recordColumns).AddRow(recordRow(t, want)...)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE id = ?`)).
		WithArgs("session-1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "session-1")
	require.NoError(t, err)
	require.Equal(t, want.Title, got.Title)
	require.Equal(t, want.Participants, got.Participants)
	require.Equal(t, want.Guests, got.Guests)
	require.True(t, want.RSVPDeadline.Equal(*got.RSVPDeadline))
	require.True(t, got.CourtBooked)
	require.Equal(t, want.History.Entries(), got.History.Entries())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions WHERE id = ?`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_FetchAll(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	first := sampleSession()
	second := sampleSession()
	second.ID = "session-2"
	second.RSVPDeadline = nil
	second.Guests = nil

	rows := sqlmock.NewRows(recordColumns).
		AddRow(recordRow(t, first)...).
		AddRow(recordRow(t, second)...)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sessions ORDER BY session_date DESC`)).WillReturnRows(rows)

	sessions, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "session-2", sessions[1].ID)
	require.Nil(t, sessions[1].RSVPDeadline)
	require.Empty(t, sessions[1].Guests)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_Create(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	got, err := repo.Create(context.Background(), sampleSession())
	require.NoError(t, err)
	require.Equal(t, "session-1", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_CreateDuplicate(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: sessions.id (1555)"))

	_, err := repo.Create(context.Background(), sampleSession())
	require.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestSessionRepository_CreateRequiresOwner(t *testing.T) {
	t.Parallel()

	repo, _ := newMockRepository(t)
	s := sampleSession()
	s.OwnerIdentity = ""

	_, err := repo.Create(context.Background(), s)
	require.ErrorIs(t, err, persistence.ErrConstraintViolation)
}

func TestSessionRepository_UpdateMissing(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), sampleSession())
	require.ErrorIs(t, err, persistence.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_UpdateRetriesLockedDatabase(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions`)).
		WillReturnError(errors.New("database is locked (5) (SQLITE_BUSY)"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.Update(context.Background(), sampleSession())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_BusyAfterRetriesIsUnavailable(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	for range 2 {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE id = ?`)).
			WithArgs("session-1").
			WillReturnError(errors.New("database is locked"))
	}

	err := repo.Delete(context.Background(), "session-1")
	require.ErrorIs(t, err, persistence.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryHelperCancellationIsNotUnavailable(t *testing.T) {
	t.Parallel()

	helper := NewRetryHelper(RetryConfig{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 1})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := helper.WithRetry(ctx, func() error {
		calls++
		cancel()
		return errors.New("database is locked")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, persistence.ErrUnavailable)
	require.Equal(t, 1, calls)

	deadline, stop := context.WithTimeout(context.Background(), time.Millisecond)
	defer stop()
	err = helper.WithRetry(deadline, func() error { return errors.New("database is locked") })
	require.ErrorIs(t, err, persistence.ErrUnavailable)
}

func TestSessionRepository_Delete(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE id = ?`)).
		WithArgs("session-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE id = ?`)).
		WithArgs("session-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "session-1"))
	require.ErrorIs(t, repo.Delete(context.Background(), "session-1"), persistence.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorMapper(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unique", err: errors.New("UNIQUE constraint failed: sessions.id"), want: persistence.ErrDuplicate},
		{name: "check", err: errors.New("CHECK constraint failed: capacity >= 0"), want: persistence.ErrConstraintViolation},
		{name: "refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), want: persistence.ErrUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: persistence.ErrUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, mapper.MapError(tt.err), tt.want)
		})
	}

	plain := errors.New("syntax error")
	require.Same(t, plain, mapper.MapError(plain))
	require.NoError(t, mapper.MapError(nil))
}
