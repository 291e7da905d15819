package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/session-coordinator/internal/session"
)

func fixture(id, date string) session.Session {
	return session.Session{
		ID:            id,
		Title:         "Session " + id,
		Location:      "Court",
		Date:          date,
		StartTime:     "10:00",
		DurationHours: 2,
		Capacity:      4,
	}
}

func TestStoreLookupAndMutation(t *testing.T) {
	t.Parallel()

	st := New(time.UTC)
	st.SetAll([]session.Session{fixture("a", "2026-05-04"), fixture("b", "2026-05-05")})
	st.Prepend(fixture("c", "2026-05-06"))

	ids := func() []string {
		var out []string
		for _, s := range st.Snapshot() {
			out = append(out, s.ID)
		}
		return out
	}
	require.Equal(t, []string{"c", "a", "b"}, ids())

	got, ok := st.FindByID("a")
	require.True(t, ok)
	require.Equal(t, "Session a", got.Title)

	got.Title = "mutated copy"
	again, _ := st.FindByID("a")
	require.Equal(t, "Session a", again.Title)

	require.True(t, st.Remove("b"))
	require.False(t, st.Remove("b"))
	require.Equal(t, []string{"c", "a"}, ids())

	_, ok = st.FindByID("missing")
	require.False(t, ok)
}

func TestStoreReplaceWhere(t *testing.T) {
	t.Parallel()

	st := New(time.UTC)
	st.SetAll([]session.Session{fixture("a", "2026-05-04")})

	changed := st.ReplaceWhere("a", func(s session.Session) (session.Session, bool) {
		s.Title = "Renamed"
		return s, true
	})
	require.True(t, changed)
	got, _ := st.FindByID("a")
	require.Equal(t, "Renamed", got.Title)

	changed = st.ReplaceWhere("a", func(s session.Session) (session.Session, bool) {
		s.Title = "Ignored"
		return s, false
	})
	require.False(t, changed)
	got, _ = st.FindByID("a")
	require.Equal(t, "Renamed", got.Title)

	require.False(t, st.ReplaceWhere("missing", func(s session.Session) (session.Session, bool) { return s, true }))
}

func TestStorePrependReplacesDuplicateID(t *testing.T) {
	t.Parallel()

	st := New(time.UTC)
	st.SetAll([]session.Session{fixture("a", "2026-05-04"), fixture("b", "2026-05-05")})
	updated := fixture("b", "2026-05-05")
	updated.Title = "fresh"
	st.Prepend(updated)

	snap := st.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "b", snap[0].ID)
	require.Equal(t, "fresh", snap[0].Title)
}

func TestStorePruneExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)
	st := New(time.UTC)
	st.SetAll([]session.Session{
		fixture("ended-15-days", now.AddDate(0, 0, -15).Format("2006-01-02")),
		fixture("ended-10-days", now.AddDate(0, 0, -10).Format("2006-01-02")),
		fixture("upcoming", now.AddDate(0, 0, 2).Format("2006-01-02")),
		fixture("broken", "not-a-date"),
	})

	remaining := st.PruneExpired(now, 14)
	require.Equal(t, 2, remaining)

	_, ok := st.FindByID("ended-15-days")
	require.False(t, ok)
	_, ok = st.FindByID("ended-10-days")
	require.True(t, ok)
	_, ok = st.FindByID("upcoming")
	require.True(t, ok)
}
