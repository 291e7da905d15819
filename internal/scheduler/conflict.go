package scheduler

import "time"

// Commitment is the scheduling view of a session as seen by one acting user.
type Commitment struct {
	ID    string
	Range Range
	// Joined is true when the acting user participates in the commitment.
	Joined bool
}

// FindConflict returns the first commitment, in iteration order, that the
// acting user has joined, that has not ended and whose range overlaps the
// candidate. The candidate itself is skipped by ID.
func FindConflict(candidate Commitment, commitments []Commitment, now time.Time) (Commitment, bool) {
	if !candidate.Range.Valid() {
		return Commitment{}, false
	}
	for _, existing := range commitments {
		if existing.ID == candidate.ID && candidate.ID != "" {
			continue
		}
		if !existing.Joined {
			continue
		}
		if HasEnded(existing.Range, now) {
			continue
		}
		if Overlaps(candidate.Range, existing.Range) {
			return existing, true
		}
	}
	return Commitment{}, false
}
