package session

import (
	"time"

	"github.com/example/session-coordinator/internal/scheduler"
)

// Phase is the lifecycle state of a session at a given instant.
type Phase string

const (
	// PhaseOpen accepts joins.
	PhaseOpen Phase = "open"
	// PhaseFull has not started and has no open spots.
	PhaseFull Phase = "full"
	// PhaseClosed has not started and its RSVP deadline has passed.
	PhaseClosed  Phase = "closed"
	PhaseStarted Phase = "started"
	PhaseEnded   Phase = "ended"
	// PhaseUnscheduled marks records whose date or time cannot be parsed.
	PhaseUnscheduled Phase = "unscheduled"
)

func classify(r scheduler.Range, m Meta) Phase {
	switch {
	case !r.Valid():
		return PhaseUnscheduled
	case m.HasEnded:
		return PhaseEnded
	case m.HasStarted:
		return PhaseStarted
	case m.IsDeadlinePassed:
		return PhaseClosed
	case m.IsFull:
		return PhaseFull
	default:
		return PhaseOpen
	}
}

// PhaseAt classifies s at now without viewer context.
func PhaseAt(s Session, now time.Time, loc *time.Location) Phase {
	return DeriveMeta(s, "", now, loc).Phase
}

// Expired reports whether s has ended and fallen out of the retention window,
// making it eligible for pruning. Records without a usable range are expired.
func Expired(s Session, now time.Time, windowDays int, loc *time.Location) bool {
	r, _ := s.Range(loc)
	return !scheduler.IsRetained(r, now, windowDays)
}
