package scheduler

import (
	"math"
	"testing"
	"time"
)

func mustRange(t *testing.T, date, clock string, hours float64) Range {
	t.Helper()
	r, ok := ComputeRange(date, clock, hours, time.UTC)
	if !ok {
		t.Fatalf("ComputeRange(%q, %q) failed", date, clock)
	}
	return r
}

func TestComputeRange(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	tests := []struct {
		name      string
		date      string
		clock     string
		hours     float64
		loc       *time.Location
		wantOK    bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "explicit duration",
			date:      "2026-05-04",
			clock:     "18:00",
			hours:     1.5,
			loc:       time.UTC,
			wantOK:    true,
			wantStart: time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 5, 4, 19, 30, 0, 0, time.UTC),
		},
		{
			name:      "missing duration defaults to two hours",
			date:      "2026-05-04",
			clock:     "10:00",
			hours:     0,
			loc:       time.UTC,
			wantOK:    true,
			wantStart: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "negative duration defaults to two hours",
			date:      "2026-05-04",
			clock:     "10:00",
			hours:     -3,
			loc:       time.UTC,
			wantOK:    true,
			wantStart: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "seconds are accepted",
			date:      "2026-05-04",
			clock:     "10:00:00",
			hours:     1,
			loc:       time.UTC,
			wantOK:    true,
			wantStart: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC),
		},
		{
			name:      "location is honoured",
			date:      "2026-07-01",
			clock:     "19:00",
			hours:     2,
			loc:       berlin,
			wantOK:    true,
			wantStart: time.Date(2026, 7, 1, 17, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 7, 1, 19, 0, 0, 0, time.UTC),
		},
		{name: "empty date", date: "", clock: "10:00", hours: 1, loc: time.UTC},
		{name: "garbage time", date: "2026-05-04", clock: "noon", hours: 1, loc: time.UTC},
		{name: "impossible date", date: "2026-02-30", clock: "10:00", hours: 1, loc: time.UTC},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ComputeRange(tc.date, tc.clock, tc.hours, tc.loc)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if !ok {
				if got.Valid() {
					t.Fatalf("expected invalid range, got %+v", got)
				}
				return
			}
			if !got.Start.Equal(tc.wantStart) || !got.End.Equal(tc.wantEnd) {
				t.Fatalf("expected [%s, %s), got [%s, %s)", tc.wantStart, tc.wantEnd, got.Start, got.End)
			}
		})
	}
}

func TestEffectiveDurationHours(t *testing.T) {
	t.Parallel()

	for _, hours := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if got := EffectiveDurationHours(hours); got != DefaultDurationHours {
			t.Fatalf("EffectiveDurationHours(%v) = %v, want %v", hours, got, DefaultDurationHours)
		}
	}
	if got := EffectiveDurationHours(3); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	a := mustRange(t, "2026-05-04", "10:00", 2)
	b := mustRange(t, "2026-05-04", "11:00", 2)
	c := mustRange(t, "2026-05-04", "12:00", 2)
	inner := mustRange(t, "2026-05-04", "10:30", 0.5)

	pairs := []struct {
		name string
		x, y Range
		want bool
	}{
		{"partial overlap", a, b, true},
		{"touching endpoints", a, c, false},
		{"containment", a, inner, true},
		{"identical", a, a, true},
		{"invalid range", a, Range{}, false},
	}
	for _, p := range pairs {
		if got := Overlaps(p.x, p.y); got != p.want {
			t.Fatalf("%s: Overlaps(x, y) = %v, want %v", p.name, got, p.want)
		}
		if Overlaps(p.x, p.y) != Overlaps(p.y, p.x) {
			t.Fatalf("%s: overlap is not symmetric", p.name)
		}
	}
}

func TestStartedAndEnded(t *testing.T) {
	t.Parallel()

	r := mustRange(t, "2026-05-04", "10:00", 2)

	if HasStarted(r, r.Start.Add(-time.Second)) {
		t.Fatalf("range must not have started before its start")
	}
	if !HasStarted(r, r.Start) {
		t.Fatalf("range must have started at its start instant")
	}
	if HasEnded(r, r.End.Add(-time.Second)) {
		t.Fatalf("range must not have ended before its end")
	}
	if !HasEnded(r, r.End) {
		t.Fatalf("range must have ended at its end instant")
	}
	if HasStarted(Range{}, r.End) || HasEnded(Range{}, r.End) {
		t.Fatalf("invalid range must never start or end")
	}
}

func TestRetention(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)
	endedAgo := func(days int) Range {
		end := now.AddDate(0, 0, -days)
		return Range{Start: end.Add(-2 * time.Hour), End: end}
	}

	if IsRetained(endedAgo(15), now, 14) {
		t.Fatalf("session ended 15 days ago must not be retained in a 14 day window")
	}
	if !IsRetained(endedAgo(10), now, 14) {
		t.Fatalf("session ended 10 days ago must be retained")
	}
	if !InHistoryWindow(endedAgo(10), now, 14) {
		t.Fatalf("session ended 10 days ago must be in the history window")
	}
	if !IsRetained(endedAgo(14), now, 14) {
		t.Fatalf("window boundary is inclusive")
	}

	upcoming := Range{Start: now.Add(time.Hour), End: now.Add(3 * time.Hour)}
	if !IsRetained(upcoming, now, 14) {
		t.Fatalf("upcoming session must be retained")
	}
	if InHistoryWindow(upcoming, now, 14) {
		t.Fatalf("upcoming session must not be in the history window")
	}
	if IsRetained(Range{}, now, 14) {
		t.Fatalf("invalid range must not be retained")
	}
}
