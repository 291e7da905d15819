package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/session-coordinator/internal/persistence"
	"github.com/example/session-coordinator/internal/scheduler"
	"github.com/example/session-coordinator/internal/session"
)

var sessionCounter uint64

var referenceTime = time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// SessionFixture is a deterministic session that can be materialised for
// domain, application or persistence tests.
type SessionFixture struct {
	ID            string
	Title         string
	Location      string
	City          string
	Date          string
	StartTime     string
	DurationHours float64
	Skill         session.SkillLevel
	Capacity      int
	TotalCost     float64
	AttendeeCount int
	Participants  []string
	Guests        []string
	RSVPDeadline  *time.Time
	OwnerIdentity string
	OwnerName     string
	Notes         string
	PaymentLink   string
	CourtBooked   bool
	CreatedAt     time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session two days after ReferenceTime, owned and
// joined by a generated host, with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	owner := fmt.Sprintf("host-%03d@example.com", idx)
	fixture := SessionFixture{
		ID:            fmt.Sprintf("session-%03d", idx),
		Title:         fmt.Sprintf("Session %03d", idx),
		Location:      "Riverside Courts",
		Date:          referenceTime.AddDate(0, 0, 2).Format(scheduler.DateLayout),
		StartTime:     "18:00",
		DurationHours: 2,
		Skill:         session.SkillIntermediate,
		Capacity:      4,
		TotalCost:     40,
		Participants:  []string{owner},
		OwnerIdentity: owner,
		OwnerName:     fmt.Sprintf("Host %03d", idx),
		CreatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithTitle overrides the title.
func WithTitle(title string) SessionOption {
	return func(f *SessionFixture) {
		f.Title = title
	}
}

// WithLocation overrides the venue.
func WithLocation(location string) SessionOption {
	return func(f *SessionFixture) {
		f.Location = location
	}
}

// WithSchedule sets the local date, start time and duration.
func WithSchedule(date, start string, hours float64) SessionOption {
	return func(f *SessionFixture) {
		f.Date = date
		f.StartTime = start
		f.DurationHours = hours
	}
}

// WithSkill overrides the skill level.
func WithSkill(level session.SkillLevel) SessionOption {
	return func(f *SessionFixture) {
		f.Skill = level
	}
}

// WithCapacity overrides the capacity.
func WithCapacity(capacity int) SessionOption {
	return func(f *SessionFixture) {
		f.Capacity = capacity
	}
}

// WithCost overrides the total cost.
func WithCost(total float64) SessionOption {
	return func(f *SessionFixture) {
		f.TotalCost = total
	}
}

// WithOwner sets the owner. The owner is not seated automatically.
func WithOwner(identity, name string) SessionOption {
	return func(f *SessionFixture) {
		f.OwnerIdentity = identity
		f.OwnerName = name
	}
}

// WithParticipants replaces the seated identities.
func WithParticipants(identities ...string) SessionOption {
	return func(f *SessionFixture) {
		f.Participants = append([]string(nil), identities...)
	}
}

// WithGuests replaces the guest names.
func WithGuests(names ...string) SessionOption {
	return func(f *SessionFixture) {
		f.Guests = append([]string(nil), names...)
	}
}

// WithAttendeeCount sets a stored attendee count that may exceed the roster.
func WithAttendeeCount(count int) SessionOption {
	return func(f *SessionFixture) {
		f.AttendeeCount = count
	}
}

// WithDeadline sets the RSVP deadline.
func WithDeadline(deadline time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.RSVPDeadline = &deadline
	}
}

// Session returns the fixture as a session entity with a single create entry
// in its history.
func (f SessionFixture) Session() session.Session {
	s := session.Session{
		ID:            f.ID,
		Title:         f.Title,
		Location:      f.Location,
		City:          f.City,
		Date:          f.Date,
		StartTime:     f.StartTime,
		DurationHours: f.DurationHours,
		Skill:         f.Skill,
		Capacity:      f.Capacity,
		TotalCost:     f.TotalCost,
		OwnerIdentity: f.OwnerIdentity,
		OwnerName:     f.OwnerName,
		Notes:         f.Notes,
		PaymentLink:   f.PaymentLink,
		CourtBooked:   f.CourtBooked,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.CreatedAt,
	}
	if f.RSVPDeadline != nil {
		deadline := *f.RSVPDeadline
		s.RSVPDeadline = &deadline
	}
	for _, identity := range f.Participants {
		name, _, _ := strings.Cut(identity, "@")
		s.Participants = append(s.Participants, session.Participant{
			Identity:    session.IdentityKey(identity),
			DisplayName: name,
			JoinedAt:    f.CreatedAt,
		})
	}
	for i, name := range f.Guests {
		s.Guests = append(s.Guests, session.Guest{
			ID:        fmt.Sprintf("%s-guest-%d", f.ID, i+1),
			Name:      name,
			CreatedAt: f.CreatedAt,
		})
	}
	s.AttendeeCount = max(f.AttendeeCount, len(s.Participants)+len(s.Guests))
	s.History.Record(session.HistoryEntry{Timestamp: f.CreatedAt, Type: session.EventCreate})
	return s
}

// Record returns the fixture as a persistence row. It panics if the session
// cannot be encoded, which only happens for programming errors in tests.
func (f SessionFixture) Record() persistence.SessionRecord {
	record, err := persistence.FromSession(f.Session())
	if err != nil {
		panic(fmt.Sprintf("testfixtures: encode session %s: %v", f.ID, err))
	}
	return record
}

// Draft returns the owner-editable content of the fixture.
func (f SessionFixture) Draft() session.Draft {
	var deadline *time.Time
	if f.RSVPDeadline != nil {
		d := *f.RSVPDeadline
		deadline = &d
	}
	return session.Draft{
		Title:         f.Title,
		Location:      f.Location,
		City:          f.City,
		Date:          f.Date,
		StartTime:     f.StartTime,
		DurationHours: f.DurationHours,
		Skill:         string(f.Skill),
		Capacity:      f.Capacity,
		TotalCost:     f.TotalCost,
		RSVPDeadline:  deadline,
		Notes:         f.Notes,
		PaymentLink:   f.PaymentLink,
		CourtBooked:   f.CourtBooked,
	}
}

// Viewer returns a viewer for identity with the local part as display name.
func Viewer(identity string) session.Viewer {
	name, _, _ := strings.Cut(identity, "@")
	return session.Viewer{Identity: session.IdentityKey(identity), Email: identity, DisplayName: name}
}
