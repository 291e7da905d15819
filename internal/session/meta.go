package session

import (
	"math"
	"time"

	"github.com/example/session-coordinator/internal/scheduler"
)

// Meta is the viewer-relative, time-relative view of a session. It is derived
// on every read and never stored on the entity.
type Meta struct {
	Occupancy         int     `json:"occupancy"`
	EffectiveCapacity int     `json:"effective_capacity"`
	OpenSpots         int     `json:"open_spots"`
	IsFull            bool    `json:"is_full"`
	IsDeadlinePassed  bool    `json:"is_deadline_passed"`
	HasStarted        bool    `json:"has_started"`
	HasEnded          bool    `json:"has_ended"`
	Joined            bool    `json:"joined"`
	CreatedByViewer   bool    `json:"created_by_viewer"`
	Joinable          bool    `json:"joinable"`
	CurrentShare      float64 `json:"current_share"`
	ProjectedShare    float64 `json:"projected_share"`
	Phase             Phase   `json:"phase"`
}

// DeriveMeta computes Meta for viewerIdentity at now. The session range is
// resolved in loc.
func DeriveMeta(s Session, viewerIdentity string, now time.Time, loc *time.Location) Meta {
	r, _ := s.Range(loc)
	occupancy := s.Occupancy()
	capacity := s.EffectiveCapacity()
	open := max(0, capacity-occupancy)

	m := Meta{
		Occupancy:         occupancy,
		EffectiveCapacity: capacity,
		OpenSpots:         open,
		IsFull:            open == 0,
		IsDeadlinePassed:  DeadlinePassed(s, now),
		HasStarted:        scheduler.HasStarted(r, now),
		HasEnded:          scheduler.HasEnded(r, now),
		Joined:            s.HasParticipant(viewerIdentity),
		CreatedByViewer:   s.IsOwnedBy(viewerIdentity),
		CurrentShare:      RoundCents(s.TotalCost / float64(max(1, occupancy))),
		ProjectedShare:    RoundCents(s.TotalCost / float64(max(1, capacity))),
	}
	m.Joinable = !m.Joined && !m.IsFull && !m.IsDeadlinePassed && !m.HasEnded
	m.Phase = classify(r, m)
	return m
}

// DeadlinePassed reports whether an RSVP deadline is set and lies before now.
func DeadlinePassed(s Session, now time.Time) bool {
	return s.RSVPDeadline != nil && s.RSVPDeadline.Before(now)
}

// RoundCents rounds v to two decimal places.
func RoundCents(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
