// Package query derives read views from session snapshots. Every function is
// pure: inputs are never modified and results are fresh slices.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/example/session-coordinator/internal/scheduler"
	"github.com/example/session-coordinator/internal/session"
)

// RecentHistoryLimit caps the recent history view.
const RecentHistoryLimit = 6

// DefaultTrendWindow is the trailing window used for the dashboard trend.
const DefaultTrendWindow = 24 * time.Hour

// Scope is the viewer and instant a view is computed for.
type Scope struct {
	Viewer   string
	Now      time.Time
	Location *time.Location
}

// Filter narrows the upcoming view. Empty fields match everything.
type Filter struct {
	Skill        session.SkillLevel
	Location     string
	JoinableOnly bool
	// IDs, when non-nil, restricts the view to the given session ids.
	IDs map[string]struct{}
}

// Item pairs a session with its derived meta.
type Item struct {
	Session session.Session `json:"session"`
	Meta    session.Meta    `json:"meta"`
}

type ranged struct {
	s session.Session
	r scheduler.Range
}

// UpcomingFiltered returns sessions that have not ended, matching f, sorted by
// start ascending. Started sessions stay visible until they end.
func UpcomingFiltered(sessions []session.Session, f Filter, scope Scope) []session.Session {
	location := strings.TrimSpace(f.Location)
	var out []ranged
	for _, s := range sessions {
		r, ok := s.Range(scope.Location)
		if !ok || scheduler.HasEnded(r, scope.Now) {
			continue
		}
		if f.Skill != "" && s.Skill != f.Skill {
			continue
		}
		if location != "" && !strings.EqualFold(strings.TrimSpace(s.Location), location) {
			continue
		}
		if f.IDs != nil {
			if _, ok := f.IDs[s.ID]; !ok {
				continue
			}
		}
		if f.JoinableOnly && !session.DeriveMeta(s, scope.Viewer, scope.Now, scope.Location).Joinable {
			continue
		}
		out = append(out, ranged{s: s, r: r})
	}
	return byStartAscending(out)
}

// JoinedByViewer returns sessions the viewer participates in that have not ended.
func JoinedByViewer(sessions []session.Session, scope Scope) []session.Session {
	return activeWhere(sessions, scope, func(s session.Session) bool {
		return s.HasParticipant(scope.Viewer)
	})
}

// HostedByViewer returns sessions the viewer owns that have not ended.
func HostedByViewer(sessions []session.Session, scope Scope) []session.Session {
	return activeWhere(sessions, scope, func(s session.Session) bool {
		return s.IsOwnedBy(scope.Viewer)
	})
}

// RecentHistory returns sessions that ended within windowDays, most recent
// start first, capped at RecentHistoryLimit.
func RecentHistory(sessions []session.Session, scope Scope, windowDays int) []session.Session {
	var out []ranged
	for _, s := range sessions {
		r, ok := s.Range(scope.Location)
		if !ok || !scheduler.InHistoryWindow(r, scope.Now, windowDays) {
			continue
		}
		out = append(out, ranged{s: s, r: r})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].r.Start.After(out[j].r.Start)
	})
	if len(out) > RecentHistoryLimit {
		out = out[:RecentHistoryLimit]
	}
	return unwrap(out)
}

// RecentTrend is the number of join events minus leave events recorded
// within the trailing window before now.
func RecentTrend(sessions []session.Session, now time.Time, window time.Duration) int {
	since := now.Add(-window)
	trend := 0
	for _, s := range sessions {
		trend += s.History.CountSince(session.EventJoin, since)
		trend -= s.History.CountSince(session.EventLeave, since)
	}
	return trend
}

// Stats summarizes a filtered view.
type Stats struct {
	Joinable  int `json:"joinable"`
	OpenSpots int `json:"open_spots"`
	Trend     int `json:"trend"`
}

// Dashboard counts joinable sessions in view and the spots open among them,
// and computes the trend over all sessions.
func Dashboard(view, all []session.Session, scope Scope) Stats {
	var stats Stats
	for _, s := range view {
		m := session.DeriveMeta(s, scope.Viewer, scope.Now, scope.Location)
		if !m.Joinable {
			continue
		}
		stats.Joinable++
		stats.OpenSpots += m.OpenSpots
	}
	stats.Trend = RecentTrend(all, scope.Now, DefaultTrendWindow)
	return stats
}

// WithMeta pairs each session with meta derived for scope.
func WithMeta(sessions []session.Session, scope Scope) []Item {
	items := make([]Item, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, Item{Session: s, Meta: session.DeriveMeta(s, scope.Viewer, scope.Now, scope.Location)})
	}
	return items
}

// Locations lists the distinct session locations, sorted case-insensitively.
func Locations(sessions []session.Session) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sessions {
		name := strings.TrimSpace(s.Location)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

func activeWhere(sessions []session.Session, scope Scope, keep func(session.Session) bool) []session.Session {
	var out []ranged
	for _, s := range sessions {
		r, ok := s.Range(scope.Location)
		if !ok || scheduler.HasEnded(r, scope.Now) || !keep(s) {
			continue
		}
		out = append(out, ranged{s: s, r: r})
	}
	return byStartAscending(out)
}

func byStartAscending(items []ranged) []session.Session {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].r.Start.Before(items[j].r.Start)
	})
	return unwrap(items)
}

func unwrap(items []ranged) []session.Session {
	out := make([]session.Session, 0, len(items))
	for _, item := range items {
		out = append(out, item.s)
	}
	return out
}
