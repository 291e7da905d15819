package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/session-coordinator/internal/session"
)

var now = time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)

func at(id string, start time.Time, hours float64) session.Session {
	return session.Session{
		ID:            id,
		Title:         "Session " + id,
		Location:      "Court A",
		Date:          start.Format("2006-01-02"),
		StartTime:     start.Format("15:04"),
		DurationHours: hours,
		Skill:         session.SkillIntermediate,
		Capacity:      4,
		OwnerIdentity: "host@example.com",
		Participants:  []session.Participant{{Identity: "host@example.com"}},
		AttendeeCount: 1,
	}
}

func ids(sessions []session.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func scope(viewer string) Scope {
	return Scope{Viewer: viewer, Now: now, Location: time.UTC}
}

func TestUpcomingFiltered(t *testing.T) {
	t.Parallel()

	later := at("later", now.Add(48*time.Hour), 2)
	soon := at("soon", now.Add(2*time.Hour), 2)
	active := at("active", now.Add(-time.Hour), 2)
	ended := at("ended", now.Add(-5*time.Hour), 2)
	advanced := at("advanced", now.Add(3*time.Hour), 2)
	advanced.Skill = session.SkillAdvanced
	elsewhere := at("elsewhere", now.Add(4*time.Hour), 2)
	elsewhere.Location = "Park"
	full := at("full", now.Add(5*time.Hour), 2)
	full.Capacity = 1
	broken := at("broken", now, 2)
	broken.Date = ""

	all := []session.Session{later, soon, active, ended, advanced, elsewhere, full, broken}

	got := UpcomingFiltered(all, Filter{}, scope("x@example.com"))
	require.Equal(t, []string{"active", "soon", "advanced", "elsewhere", "full", "later"}, ids(got))

	got = UpcomingFiltered(all, Filter{Skill: session.SkillAdvanced}, scope("x@example.com"))
	require.Equal(t, []string{"advanced"}, ids(got))

	got = UpcomingFiltered(all, Filter{Location: "park"}, scope("x@example.com"))
	require.Equal(t, []string{"elsewhere"}, ids(got))

	got = UpcomingFiltered(all, Filter{JoinableOnly: true}, scope("x@example.com"))
	require.NotContains(t, ids(got), "full")
	require.Contains(t, ids(got), "soon")

	got = UpcomingFiltered(all, Filter{JoinableOnly: true}, scope("host@example.com"))
	require.Empty(t, got, "host already joined every session")

	got = UpcomingFiltered(all, Filter{IDs: map[string]struct{}{"later": {}}}, scope(""))
	require.Equal(t, []string{"later"}, ids(got))
}

func TestJoinedAndHostedByViewer(t *testing.T) {
	t.Parallel()

	mine := at("mine", now.Add(24*time.Hour), 2)
	joined := at("joined", now.Add(2*time.Hour), 2)
	joined.OwnerIdentity = "other@example.com"
	joined.Participants = append(joined.Participants, session.Participant{Identity: "me@example.com"})
	mine.OwnerIdentity = "me@example.com"
	mine.Participants = []session.Participant{{Identity: "me@example.com"}}
	past := at("past", now.Add(-10*time.Hour), 2)
	past.OwnerIdentity = "me@example.com"
	past.Participants = []session.Participant{{Identity: "me@example.com"}}

	all := []session.Session{mine, joined, past}

	require.Equal(t, []string{"joined", "mine"}, ids(JoinedByViewer(all, scope("ME@example.com"))))
	require.Equal(t, []string{"mine"}, ids(HostedByViewer(all, scope("me@example.com"))))
}

func TestRecentHistory(t *testing.T) {
	t.Parallel()

	var all []session.Session
	for days := 1; days <= 8; days++ {
		all = append(all, at(string(rune('a'+days-1)), now.AddDate(0, 0, -days), 2))
	}
	all = append(all, at("ended-10", now.AddDate(0, 0, -10), 2))
	all = append(all, at("ended-15", now.AddDate(0, 0, -15), 2))
	all = append(all, at("upcoming", now.Add(time.Hour), 2))

	got := RecentHistory(all, scope(""), 14)
	require.Len(t, got, RecentHistoryLimit)
	require.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, ids(got))

	got = RecentHistory([]session.Session{all[8], all[9]}, scope(""), 14)
	require.Equal(t, []string{"ended-10"}, ids(got))
}

func TestRecentTrend(t *testing.T) {
	t.Parallel()

	s := at("a", now.Add(time.Hour), 2)
	s.History = session.HistoryFrom(0, []session.HistoryEntry{
		{Timestamp: now.Add(-time.Hour), Type: session.EventJoin},
		{Timestamp: now.Add(-2 * time.Hour), Type: session.EventJoin},
		{Timestamp: now.Add(-3 * time.Hour), Type: session.EventLeave},
		{Timestamp: now.Add(-48 * time.Hour), Type: session.EventJoin},
		{Timestamp: now.Add(-4 * time.Hour), Type: session.EventCreate},
	})
	other := at("b", now.Add(time.Hour), 2)
	other.History = session.HistoryFrom(0, []session.HistoryEntry{
		{Timestamp: now.Add(-time.Minute), Type: session.EventLeave},
		{Timestamp: now.Add(-2 * time.Minute), Type: session.EventLeave},
	})

	require.Equal(t, 1, RecentTrend([]session.Session{s}, now, 24*time.Hour))
	require.Equal(t, -1, RecentTrend([]session.Session{s, other}, now, 24*time.Hour))
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	open := at("open", now.Add(time.Hour), 2)
	full := at("full", now.Add(time.Hour), 2)
	full.Capacity = 1
	joinedByViewer := at("mine", now.Add(time.Hour), 2)
	joinedByViewer.Participants = append(joinedByViewer.Participants, session.Participant{Identity: "me@example.com"})
	joinedByViewer.AttendeeCount = 2

	view := []session.Session{open, full, joinedByViewer}
	stats := Dashboard(view, view, scope("me@example.com"))
	require.Equal(t, 1, stats.Joinable)
	require.Equal(t, 3, stats.OpenSpots)
	require.Zero(t, stats.Trend)
}

func TestWithMetaAndLocations(t *testing.T) {
	t.Parallel()

	a := at("a", now.Add(time.Hour), 2)
	b := at("b", now.Add(time.Hour), 2)
	b.Location = "court a"
	c := at("c", now.Add(time.Hour), 2)
	c.Location = "Beach"

	items := WithMeta([]session.Session{a}, scope("host@example.com"))
	require.Len(t, items, 1)
	require.True(t, items[0].Meta.Joined)

	require.Equal(t, []string{"Beach", "Court A"}, Locations([]session.Session{a, b, c}))
}
