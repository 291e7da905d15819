package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/session-coordinator/internal/session"
)

// NotificationType names the transition a notification reports.
type NotificationType string

const (
	NotificationCreated   NotificationType = "event.created"
	NotificationCancelled NotificationType = "event.cancelled"
	NotificationJoined    NotificationType = "event.joined"
	NotificationLeft      NotificationType = "event.left"
)

// IsRSVPChange reports whether t is a join or leave.
func (t NotificationType) IsRSVPChange() bool {
	return t == NotificationJoined || t == NotificationLeft
}

// Actor is who performed the transition.
type Actor struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// Summary is the subset of a session recipients see.
type Summary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Location string    `json:"location"`
	City     string    `json:"city,omitempty"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Start    time.Time `json:"start,omitzero"`
}

// Audience selects recipients. Identities, when set, is an allow list;
// otherwise everyone except Exclude is addressed.
type Audience struct {
	Identities []string `json:"identities,omitempty"`
	Exclude    []string `json:"exclude,omitempty"`
}

// Notification is handed to the Notifier after a successful transition.
type Notification struct {
	Type       NotificationType `json:"type"`
	Actor      Actor            `json:"actor"`
	Session    Summary          `json:"session"`
	Audience   Audience         `json:"audience"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	OccurredAt time.Time        `json:"occurred_at"`
}

const (
	fallbackEventLabel = "Session"
	fallbackActorName  = "A community member"
)

// NewNotification builds the notification for t performed by viewer on s.
// RSVP changes address the host and participants. Creation and cancellation
// address everyone. The actor is never a recipient.
func NewNotification(t NotificationType, viewer session.Viewer, s session.Session, at time.Time, loc *time.Location) Notification {
	actor := Actor{Identity: session.IdentityKey(viewer.Identity), Name: strings.TrimSpace(viewer.DisplayName)}
	if actor.Name == "" {
		actor.Name = strings.TrimSpace(viewer.Email)
	}

	summary := Summary{
		ID:       s.ID,
		Title:    s.Title,
		Location: s.Location,
		City:     s.City,
		Date:     s.Date,
		Time:     s.StartTime,
	}
	if r, ok := s.Range(loc); ok {
		summary.Start = r.Start
	}

	n := Notification{
		Type:       t,
		Actor:      actor,
		Session:    summary,
		OccurredAt: at,
	}
	n.Title, n.Body = notificationCopy(t, summary, actor)

	if t.IsRSVPChange() {
		n.Audience.Identities = rsvpAudience(s, actor.Identity)
	} else if actor.Identity != "" {
		n.Audience.Exclude = []string{actor.Identity}
	}
	return n
}

func rsvpAudience(s session.Session, actor string) []string {
	seen := map[string]struct{}{actor: {}}
	var out []string
	add := func(identity string) {
		key := session.IdentityKey(identity)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	add(s.OwnerIdentity)
	for _, p := range s.Participants {
		add(p.Identity)
	}
	return out
}

func notificationCopy(t NotificationType, s Summary, actor Actor) (string, string) {
	label := strings.TrimSpace(s.Title)
	if label == "" {
		label = fallbackEventLabel
	}
	name := actor.Name
	if name == "" {
		name = fallbackActorName
	}
	at := ""
	if s.Location != "" {
		at = " @ " + s.Location
	}
	when := ""
	if !s.Start.IsZero() {
		when = s.Start.Format("Mon 02.01. 15:04")
	}

	switch t {
	case NotificationCreated:
		if when == "" {
			when = "soon"
		}
		return "New session: " + label, fmt.Sprintf("%s is hosting%s on %s.", name, at, when)
	case NotificationCancelled:
		return "Session cancelled", fmt.Sprintf("%s%s was cancelled by %s.", label, at, name)
	case NotificationJoined:
		return "New RSVP for " + label, fmt.Sprintf("%s is joining %s%s.", name, label, onDate(when))
	default:
		return "RSVP withdrawn for " + label, fmt.Sprintf("%s dropped out of %s%s.", name, label, onDate(when))
	}
}

func onDate(when string) string {
	if when == "" {
		return ""
	}
	return " on " + when
}
