package scheduler

import (
	"math"
	"strings"
	"time"
)

// DefaultDurationHours applies when a duration is missing, non-finite or not positive.
const DefaultDurationHours = 2.0

// DateLayout is the local date format sessions are stored with.
const DateLayout = "2006-01-02"

var clockLayouts = []string{"15:04", "15:04:05"}

// Range is a half-open interval [Start, End). The zero Range means "no range".
type Range struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range was computed from parseable fields.
func (r Range) Valid() bool {
	return !r.Start.IsZero() && r.End.After(r.Start)
}

// Duration returns End - Start, or zero for an invalid range.
func (r Range) Duration() time.Duration {
	if !r.Valid() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// EffectiveDurationHours returns hours, or DefaultDurationHours when hours is unusable.
func EffectiveDurationHours(hours float64) float64 {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return DefaultDurationHours
	}
	return hours
}

// ComputeRange resolves a calendar date, a time of day and a duration into a
// range in loc. It returns false when the date or time cannot be parsed.
func ComputeRange(date, startTime string, durationHours float64, loc *time.Location) (Range, bool) {
	date = strings.TrimSpace(date)
	startTime = strings.TrimSpace(startTime)
	if date == "" || startTime == "" {
		return Range{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return Range{}, false
	}
	clock, ok := parseClock(startTime)
	if !ok {
		return Range{}, false
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
	minutes := math.Round(EffectiveDurationHours(durationHours) * 60)
	if minutes < 1 {
		minutes = 1
	}
	return Range{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}, true
}

// ValidDate reports whether value is a calendar date in YYYY-MM-DD form.
func ValidDate(value string) bool {
	_, err := time.Parse(DateLayout, strings.TrimSpace(value))
	return err == nil
}

// ValidClock reports whether value is a time of day in HH:MM or HH:MM:SS form.
func ValidClock(value string) bool {
	_, ok := parseClock(strings.TrimSpace(value))
	return ok
}

func parseClock(value string) (time.Time, bool) {
	for _, layout := range clockLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Overlaps reports whether two half-open ranges intersect. Touching endpoints
// do not overlap, and an invalid range overlaps nothing.
func Overlaps(a, b Range) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// HasStarted reports start <= now.
func HasStarted(r Range, now time.Time) bool {
	return r.Valid() && !r.Start.After(now)
}

// HasEnded reports end <= now.
func HasEnded(r Range, now time.Time) bool {
	return r.Valid() && !r.End.After(now)
}

// RetentionCutoff is the oldest end instant still inside a window of windowDays
// calendar days before now.
func RetentionCutoff(now time.Time, windowDays int) time.Time {
	if windowDays < 0 {
		windowDays = 0
	}
	return now.AddDate(0, 0, -windowDays)
}

// IsRetained reports whether r has not ended yet or ended within the window.
func IsRetained(r Range, now time.Time, windowDays int) bool {
	if !r.Valid() {
		return false
	}
	if r.End.After(now) {
		return true
	}
	return !r.End.Before(RetentionCutoff(now, windowDays))
}

// InHistoryWindow reports whether r has ended and is still inside the window.
func InHistoryWindow(r Range, now time.Time, windowDays int) bool {
	return HasEnded(r, now) && !r.End.Before(RetentionCutoff(now, windowDays))
}
