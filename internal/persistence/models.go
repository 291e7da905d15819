package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/session-coordinator/internal/session"
)

// timestampLayout is how instants are stored in text columns.
const timestampLayout = time.RFC3339Nano

// SessionRecord is the row shape of the sessions table. Participants, guests
// and history are stored as JSON arrays.
type SessionRecord struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Location      string         `db:"location"`
	City          string         `db:"city"`
	Date          string         `db:"session_date"`
	StartTime     string         `db:"start_time"`
	DurationHours float64        `db:"duration_hours"`
	Skill         string         `db:"skill_level"`
	Capacity      int            `db:"capacity"`
	TotalCost     float64        `db:"total_cost"`
	AttendeeCount int            `db:"attendee_count"`
	Participants  string         `db:"participants"`
	Guests        string         `db:"guests"`
	RSVPDeadline  sql.NullString `db:"rsvp_deadline"`
	OwnerIdentity string         `db:"owner_identity"`
	OwnerName     string         `db:"owner_name"`
	Notes         string         `db:"notes"`
	PaymentLink   string         `db:"payment_link"`
	CourtBooked   bool           `db:"court_booked"`
	History       string         `db:"history"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

// FromSession converts s to its row form.
func FromSession(s session.Session) (SessionRecord, error) {
	participants, err := marshalList(s.Participants)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("persistence: encode participants: %w", err)
	}
	guests, err := marshalList(s.Guests)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("persistence: encode guests: %w", err)
	}
	history, err := marshalList(s.History.Entries())
	if err != nil {
		return SessionRecord{}, fmt.Errorf("persistence: encode history: %w", err)
	}

	rec := SessionRecord{
		ID:            s.ID,
		Title:         s.Title,
		Location:      s.Location,
		City:          s.City,
		Date:          s.Date,
		StartTime:     s.StartTime,
		DurationHours: s.DurationHours,
		Skill:         string(s.Skill),
		Capacity:      s.Capacity,
		TotalCost:     s.TotalCost,
		AttendeeCount: s.AttendeeCount,
		Participants:  participants,
		Guests:        guests,
		OwnerIdentity: s.OwnerIdentity,
		OwnerName:     s.OwnerName,
		Notes:         s.Notes,
		PaymentLink:   s.PaymentLink,
		CourtBooked:   s.CourtBooked,
		History:       history,
		CreatedAt:     formatTimestamp(s.CreatedAt),
		UpdatedAt:     formatTimestamp(s.UpdatedAt),
	}
	if s.RSVPDeadline != nil {
		rec.RSVPDeadline = sql.NullString{String: formatTimestamp(*s.RSVPDeadline), Valid: true}
	}
	return rec, nil
}

// ToSession converts the row back to a session. The result is not
// normalized; callers normalize on read.
func (r SessionRecord) ToSession() (session.Session, error) {
	s := session.Session{
		ID:            r.ID,
		Title:         r.Title,
		Location:      r.Location,
		City:          r.City,
		Date:          r.Date,
		StartTime:     r.StartTime,
		DurationHours: r.DurationHours,
		Skill:         session.SkillLevel(r.Skill),
		Capacity:      r.Capacity,
		TotalCost:     r.TotalCost,
		AttendeeCount: r.AttendeeCount,
		OwnerIdentity: r.OwnerIdentity,
		OwnerName:     r.OwnerName,
		Notes:         r.Notes,
		PaymentLink:   r.PaymentLink,
		CourtBooked:   r.CourtBooked,
	}
	if err := unmarshalList(r.Participants, &s.Participants); err != nil {
		return session.Session{}, fmt.Errorf("persistence: decode participants of %s: %w", r.ID, err)
	}
	if err := unmarshalList(r.Guests, &s.Guests); err != nil {
		return session.Session{}, fmt.Errorf("persistence: decode guests of %s: %w", r.ID, err)
	}
	var entries []session.HistoryEntry
	if err := unmarshalList(r.History, &entries); err != nil {
		return session.Session{}, fmt.Errorf("persistence: decode history of %s: %w", r.ID, err)
	}
	s.History = session.HistoryFrom(session.MaxHistoryEntries, entries)

	var err error
	if s.CreatedAt, err = parseTimestamp(r.CreatedAt); err != nil {
		return session.Session{}, fmt.Errorf("persistence: created_at of %s: %w", r.ID, err)
	}
	if s.UpdatedAt, err = parseTimestamp(r.UpdatedAt); err != nil {
		return session.Session{}, fmt.Errorf("persistence: updated_at of %s: %w", r.ID, err)
	}
	if r.RSVPDeadline.Valid && r.RSVPDeadline.String != "" {
		deadline, err := parseTimestamp(r.RSVPDeadline.String)
		if err != nil {
			return session.Session{}, fmt.Errorf("persistence: rsvp_deadline of %s: %w", r.ID, err)
		}
		s.RSVPDeadline = &deadline
	}
	return s, nil
}

func marshalList[T any](items []T) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalList[T any](raw string, out *[]T) error {
	if raw == "" || raw == "null" {
		*out = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(timestampLayout, value)
}
