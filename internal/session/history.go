package session

import "time"

// MaxHistoryEntries bounds the lifecycle log kept per session.
const MaxHistoryEntries = 40

// EventType classifies a lifecycle log entry.
type EventType string

const (
	EventCreate EventType = "create"
	EventJoin   EventType = "join"
	EventLeave  EventType = "leave"
	EventUpdate EventType = "update"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventCreate, EventJoin, EventLeave, EventUpdate:
		return true
	}
	return false
}

// HistoryEntry is one lifecycle event.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// History is a fixed-capacity ring of lifecycle events. Recording past the
// limit overwrites the oldest entry. The zero value holds MaxHistoryEntries.
type History struct {
	buf   []HistoryEntry
	start int
	n     int
}

// NewHistory returns an empty history holding at most limit entries.
func NewHistory(limit int) History {
	if limit <= 0 {
		limit = MaxHistoryEntries
	}
	return History{buf: make([]HistoryEntry, limit)}
}

// HistoryFrom builds a history from entries ordered most recent first,
// keeping at most limit of them.
func HistoryFrom(limit int, newestFirst []HistoryEntry) History {
	h := NewHistory(limit)
	if len(newestFirst) > len(h.buf) {
		newestFirst = newestFirst[:len(h.buf)]
	}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		h.Record(newestFirst[i])
	}
	return h
}

// Record adds e as the most recent entry.
func (h *History) Record(e HistoryEntry) {
	if h.buf == nil {
		h.buf = make([]HistoryEntry, MaxHistoryEntries)
	}
	limit := len(h.buf)
	if h.n < limit {
		h.buf[(h.start+h.n)%limit] = e
		h.n++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % limit
}

// Entries returns the entries most recent first.
func (h History) Entries() []HistoryEntry {
	if h.n == 0 {
		return nil
	}
	out := make([]HistoryEntry, 0, h.n)
	for i := h.n - 1; i >= 0; i-- {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

// Len returns the number of retained entries.
func (h History) Len() int { return h.n }

// Limit returns the maximum number of retained entries.
func (h History) Limit() int {
	if h.buf == nil {
		return MaxHistoryEntries
	}
	return len(h.buf)
}

// Latest returns the most recent entry.
func (h History) Latest() (HistoryEntry, bool) {
	if h.n == 0 {
		return HistoryEntry{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

// Clone returns an independent copy.
func (h History) Clone() History {
	if h.buf == nil {
		return History{}
	}
	out := History{buf: make([]HistoryEntry, len(h.buf)), start: h.start, n: h.n}
	copy(out.buf, h.buf)
	return out
}

// CountSince counts entries of type t at or after since.
func (h History) CountSince(t EventType, since time.Time) int {
	count := 0
	for i := 0; i < h.n; i++ {
		e := h.buf[(h.start+i)%len(h.buf)]
		if e.Type == t && !e.Timestamp.Before(since) {
			count++
		}
	}
	return count
}
