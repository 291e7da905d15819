package application

import (
	"context"
	"time"

	"github.com/example/session-coordinator/internal/session"
)

// SessionRepository is the remote source of truth for sessions. The service
// applies results to the in-memory store only after a call succeeds.
type SessionRepository interface {
	FetchAll(ctx context.Context) ([]session.Session, error)
	Get(ctx context.Context, id string) (session.Session, error)
	Create(ctx context.Context, s session.Session) (session.Session, error)
	Update(ctx context.Context, s session.Session) (session.Session, error)
	Delete(ctx context.Context, id string) error
}

// Notifier receives fire-and-forget notifications after successful transitions.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SearchIndex narrows views by free text.
type SearchIndex interface {
	Rebuild(sessions []session.Session) error
	Upsert(s session.Session) error
	Remove(id string) error
	Match(text string, limit int) (map[string]struct{}, error)
}

// Outcome discriminates the result of a transition.
type Outcome string

const (
	// OutcomeApplied means the transition was persisted and committed to the store.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoChange means the requested state already holds.
	OutcomeNoChange Outcome = "no_change"
	// OutcomeRejected means a precondition was not met. Nothing changed.
	OutcomeRejected Outcome = "rejected"
)

// Reason explains a no-change or rejected outcome.
type Reason string

const (
	ReasonAlreadyJoined  Reason = "already_joined"
	ReasonNotJoined      Reason = "not_joined"
	ReasonFull           Reason = "full"
	ReasonDeadlinePassed Reason = "deadline_passed"
	ReasonStarted        Reason = "started"
	ReasonNotOwner       Reason = "not_owner"
	ReasonUnscheduled    Reason = "unscheduled"
)

// Result is returned by every transition. Session holds the state after the
// transition, or the current state when nothing changed.
type Result struct {
	Outcome Outcome
	Reason  Reason
	Session session.Session
}

// Changed reports whether the transition was applied.
func (r Result) Changed() bool {
	return r.Outcome == OutcomeApplied
}

func applied(s session.Session) Result {
	return Result{Outcome: OutcomeApplied, Session: s}
}

func noChange(reason Reason, s session.Session) Result {
	return Result{Outcome: OutcomeNoChange, Reason: reason, Session: s}
}

func rejected(reason Reason, s session.Session) Result {
	return Result{Outcome: OutcomeRejected, Reason: reason, Session: s}
}

// Options configures policy for the session service.
type Options struct {
	// Location is the time zone session dates and times are interpreted in.
	Location *time.Location
	// RetentionDays is how long ended sessions stay visible.
	RetentionDays int
	// DeadlineLead is the minimum gap between an RSVP deadline and the start.
	DeadlineLead time.Duration
	// RepositoryTimeout bounds each repository round-trip. Zero disables it.
	RepositoryTimeout time.Duration
}

// DefaultRetentionDays keeps ended sessions for two weeks.
const DefaultRetentionDays = 14

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.RetentionDays <= 0 {
		o.RetentionDays = DefaultRetentionDays
	}
	if o.DeadlineLead <= 0 {
		o.DeadlineLead = session.DefaultDeadlineLead
	}
	return o
}
