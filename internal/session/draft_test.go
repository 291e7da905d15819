package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{
		Title:         "  Sunday singles ",
		Location:      "Riverside courts",
		Date:          "2026-05-04",
		StartTime:     "10:00",
		DurationHours: 1.6,
		Capacity:      4,
		TotalCost:     30.456,
		PaymentLink:   "https://pay.example.com/x",
	}
}

func TestParseDraftAppliesDefaults(t *testing.T) {
	t.Parallel()

	got, err := ParseDraft(validDraft(), now, DraftPolicy{Location: time.UTC})
	require.NoError(t, err)
	require.Equal(t, "Sunday singles", got.Title)
	require.Equal(t, SkillIntermediate, got.Skill)
	require.Equal(t, 2.0, got.DurationHours)
	require.InDelta(t, 30.46, got.TotalCost, 0.0001)
	require.Equal(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC), got.Range.Start)
	require.Equal(t, time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC), got.Range.End)
}

func TestParseDraftRejectsInvalidFields(t *testing.T) {
	t.Parallel()

	d := Draft{
		Title:         "   ",
		Date:          "04.05.2026",
		StartTime:     "25:99",
		DurationHours: -1,
		Skill:         "Pro",
		Capacity:      1,
		TotalCost:     -5,
		PaymentLink:   "ftp://files.example.com",
	}

	_, err := ParseDraft(d, now, DraftPolicy{Location: time.UTC})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	for _, field := range []string{"title", "location", "date", "start_time", "duration_hours", "skill_level", "capacity", "total_cost", "payment_link"} {
		require.Contains(t, vErr.FieldErrors, field)
	}
	require.Equal(t, "title is required", vErr.FieldErrors["title"])
}

func TestParseDraftRequiresFutureStart(t *testing.T) {
	t.Parallel()

	d := validDraft()
	d.Date = "2026-04-30"

	_, err := ParseDraft(d, now, DraftPolicy{Location: time.UTC})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, "start must be in the future", vErr.FieldErrors["start"])
}

func TestParseDraftDeadlineRules(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		deadline time.Time
		wantErr  string
	}{
		{name: "exactly the lead before start", deadline: start.Add(-30 * time.Minute)},
		{name: "well before start", deadline: start.Add(-24 * time.Hour)},
		{name: "inside the lead", deadline: start.Add(-10 * time.Minute), wantErr: "rsvp deadline must be at least 30 minutes before the start"},
		{name: "after start", deadline: start.Add(time.Hour), wantErr: "rsvp deadline must be at least 30 minutes before the start"},
		{name: "already passed", deadline: now.Add(-time.Minute), wantErr: "rsvp deadline must be in the future"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := validDraft()
			deadline := tc.deadline
			d.RSVPDeadline = &deadline

			_, err := ParseDraft(d, now, DraftPolicy{Location: time.UTC, DeadlineLead: 30 * time.Minute})
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			require.Equal(t, tc.wantErr, vErr.FieldErrors["rsvp_deadline"])
		})
	}
}

func TestApplyToWidensCapacityToOccupancy(t *testing.T) {
	t.Parallel()

	s := sample()
	for _, id := range []string{"b@example.com", "c@example.com"} {
		var ok bool
		s, ok = s.WithParticipant(Participant{Identity: id})
		require.True(t, ok)
	}

	d := validDraft()
	d.Capacity = 2
	v, err := ParseDraft(d, now, DraftPolicy{Location: time.UTC})
	require.NoError(t, err)

	edited := v.ApplyTo(s)
	require.Equal(t, 3, edited.Capacity)
	require.GreaterOrEqual(t, edited.Capacity, edited.Occupancy())
	require.Len(t, edited.Participants, 3)
	require.Equal(t, "Sunday singles", edited.Title)
}
