package session

import (
	"math"
	"strings"
)

// Normalize repairs a record read from a repository so that it satisfies the
// entity invariants. It never adds participants and never shrinks capacity
// below the seats actually taken.
func Normalize(s Session) Session {
	out := s.Clone()
	out.Title = strings.TrimSpace(out.Title)
	out.Location = strings.TrimSpace(out.Location)
	out.City = strings.TrimSpace(out.City)
	out.Date = strings.TrimSpace(out.Date)
	out.StartTime = strings.TrimSpace(out.StartTime)
	out.OwnerIdentity = IdentityKey(out.OwnerIdentity)
	out.OwnerName = strings.TrimSpace(out.OwnerName)
	out.PaymentLink = strings.TrimSpace(out.PaymentLink)

	out.Participants = normalizeParticipants(out.Participants)
	out.Guests = NormalizeGuests(out.Guests)

	if math.IsNaN(out.TotalCost) || math.IsInf(out.TotalCost, 0) || out.TotalCost < 0 {
		out.TotalCost = 0
	}
	out.TotalCost = RoundCents(out.TotalCost)
	out.DurationHours = PersistedDurationHours(out.DurationHours)

	if skill, ok := ParseSkillLevel(string(out.Skill)); ok {
		out.Skill = skill
	} else {
		out.Skill = SkillIntermediate
	}

	seated := len(out.Participants) + len(out.Guests)
	out.Capacity = max(out.Capacity, seated)
	out.AttendeeCount = min(out.Capacity, max(out.AttendeeCount, seated))

	out.History = normalizeHistory(out.History)
	return out
}

func normalizeParticipants(in []Participant) []Participant {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Participant, 0, len(in))
	for _, p := range in {
		key := IdentityKey(p.Identity)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		p.Identity = key
		p.DisplayName = strings.TrimSpace(p.DisplayName)
		out = append(out, p)
	}
	return out
}

// NormalizeGuests trims guest names, drops empty ones and removes
// case-insensitive duplicates, keeping the first occurrence.
func NormalizeGuests(in []Guest) []Guest {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Guest, 0, len(in))
	for _, g := range in {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		g.Name = name
		out = append(out, g)
	}
	return out
}

func normalizeHistory(h History) History {
	entries := h.Entries()
	kept := entries[:0]
	for _, e := range entries {
		if e.Type.Valid() && !e.Timestamp.IsZero() {
			kept = append(kept, e)
		}
	}
	return HistoryFrom(MaxHistoryEntries, kept)
}
