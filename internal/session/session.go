// Package session defines the session entity and the pure rules that derive
// capacity, occupancy, cost shares and joinability from its raw fields.
package session

import (
	"strings"
	"time"

	"github.com/example/session-coordinator/internal/scheduler"
)

// SkillLevel is the closed set of skill levels a session targets.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "Beginner"
	SkillIntermediate SkillLevel = "Intermediate"
	SkillAdvanced     SkillLevel = "Advanced"
)

// MinCapacity is the smallest capacity a session may be created with.
const MinCapacity = 2

// SkillLevels lists the valid skill levels in display order.
func SkillLevels() []SkillLevel {
	return []SkillLevel{SkillBeginner, SkillIntermediate, SkillAdvanced}
}

// ParseSkillLevel matches value case-insensitively against the known levels.
func ParseSkillLevel(value string) (SkillLevel, bool) {
	value = strings.TrimSpace(value)
	for _, level := range SkillLevels() {
		if strings.EqualFold(value, string(level)) {
			return level, true
		}
	}
	return "", false
}

// Participant is a registered user holding a seat.
type Participant struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Guest is a named seat added by the host. Guests are not identities.
type Guest struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Viewer is the identity a read or transition is evaluated for.
type Viewer struct {
	Identity    string
	Email       string
	DisplayName string
}

// IdentityKey returns the canonical form used to compare identities.
func IdentityKey(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// Session is a scheduled, capacity-bounded group activity.
type Session struct {
	ID            string
	Title         string
	Location      string
	City          string
	Date          string
	StartTime     string
	DurationHours float64
	Skill         SkillLevel
	Capacity      int
	TotalCost     float64
	AttendeeCount int
	Participants  []Participant
	Guests        []Guest
	RSVPDeadline  *time.Time
	OwnerIdentity string
	OwnerName     string
	Notes         string
	PaymentLink   string
	CourtBooked   bool
	History       History
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Range computes the session's time range in loc.
func (s Session) Range(loc *time.Location) (scheduler.Range, bool) {
	return scheduler.ComputeRange(s.Date, s.StartTime, s.DurationHours, loc)
}

// Occupancy is max(attendeeCount, participants + guests).
func (s Session) Occupancy() int {
	return max(s.AttendeeCount, len(s.Participants)+len(s.Guests), 0)
}

// EffectiveCapacity never reports less than the current occupancy.
func (s Session) EffectiveCapacity() int {
	return max(s.Occupancy(), s.Capacity)
}

// HasParticipant reports whether identity holds a seat.
func (s Session) HasParticipant(identity string) bool {
	return s.participantIndex(identity) >= 0
}

// IsOwnedBy reports whether identity owns the session.
func (s Session) IsOwnedBy(identity string) bool {
	key := IdentityKey(identity)
	return key != "" && IdentityKey(s.OwnerIdentity) == key
}

func (s Session) participantIndex(identity string) int {
	key := IdentityKey(identity)
	if key == "" {
		return -1
	}
	for i, p := range s.Participants {
		if IdentityKey(p.Identity) == key {
			return i
		}
	}
	return -1
}

// WithParticipant returns a copy with p added and occupancy raised by one.
// The second result is false when p already holds a seat.
func (s Session) WithParticipant(p Participant) (Session, bool) {
	if s.HasParticipant(p.Identity) {
		return s, false
	}
	out := s.Clone()
	p.Identity = IdentityKey(p.Identity)
	out.Participants = append(out.Participants, p)
	out.AttendeeCount = s.Occupancy() + 1
	return out, true
}

// WithoutParticipant returns a copy with identity removed and occupancy
// lowered by one, floored at zero. The second result
// is false when identity holds no seat.
func (s Session) WithoutParticipant(identity string) (Session, bool) {
	idx := s.participantIndex(identity)
	if idx < 0 {
		return s, false
	}
	out := s.Clone()
	out.Participants = append(out.Participants[:idx:idx], out.Participants[idx+1:]...)
	out.AttendeeCount = max(0, s.Occupancy()-1, len(out.Participants)+len(out.Guests))
	return out, true
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	if s.Participants != nil {
		out.Participants = append([]Participant(nil), s.Participants...)
	}
	if s.Guests != nil {
		out.Guests = append([]Guest(nil), s.Guests...)
	}
	if s.RSVPDeadline != nil {
		deadline := *s.RSVPDeadline
		out.RSVPDeadline = &deadline
	}
	out.History = s.History.Clone()
	return out
}
