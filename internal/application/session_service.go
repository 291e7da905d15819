package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/session-coordinator/internal/scheduler"
	"github.com/example/session-coordinator/internal/session"
	"github.com/example/session-coordinator/internal/store"
)

const sessionServiceName = "SessionService"

var errRepositoryNotConfigured = errors.New("application: session repository not configured")

// SessionService runs the session lifecycle. Each transition holds an
// exclusive per-session lock across its repository round-trip, re-validates
// against the freshest repository state and commits to the store only after
// the repository confirms.
type SessionService struct {
	repo        SessionRepository
	store       *store.Store
	notifier    Notifier
	index       SearchIndex
	locks       *keyedLocks
	viewerLocks *keyedLocks
	idGenerator func() string
	now         func() time.Time
	opts        Options
	logger      *slog.Logger
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(repo SessionRepository, st *store.Store, notifier Notifier, index SearchIndex, idGenerator func() string, now func() time.Time, opts Options) *SessionService {
	return NewSessionServiceWithLogger(repo, st, notifier, index, idGenerator, now, opts, nil)
}

// NewSessionServiceWithLogger wires dependencies and a base logger. A nil
// store is replaced by an empty one in opts.Location.
func NewSessionServiceWithLogger(repo SessionRepository, st *store.Store, notifier Notifier, index SearchIndex, idGenerator func() string, now func() time.Time, opts Options, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	opts = opts.withDefaults()
	if st == nil {
		st = store.New(opts.Location)
	} else {
		opts.Location = st.Location()
	}
	return &SessionService{
		repo:        repo,
		store:       st,
		notifier:    notifier,
		index:       index,
		locks:       newKeyedLocks(),
		viewerLocks: newKeyedLocks(),
		idGenerator: idGenerator,
		now:         now,
		opts:        opts,
		logger:      defaultLogger(logger),
	}
}

// Store exposes the authoritative collection for read access.
func (s *SessionService) Store() *store.Store {
	return s.store
}

// Create validates draft and persists a new session owned by viewer, who is
// seated as the first participant.
func (s *SessionService) Create(ctx context.Context, viewer session.Viewer, draft session.Draft) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("SessionService is nil")
	}
	identity := session.IdentityKey(viewer.Identity)
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "Create", "viewer", identity)
	if identity == "" {
		logger.WarnContext(ctx, "create rejected", "error_kind", ErrorKind(ErrUnauthorized))
		return Result{}, ErrUnauthorized
	}
	if s.repo == nil {
		return Result{}, errRepositoryNotConfigured
	}

	now := s.now()
	valid, err := session.ParseDraft(draft, now, s.draftPolicy())
	if err != nil {
		logger.WarnContext(ctx, "session validation failed", "error_kind", ErrorKind(err), "error", err)
		return Result{}, err
	}

	name := displayName(viewer)
	candidate := valid.ApplyTo(session.Session{
		ID:            s.idGenerator(),
		OwnerIdentity: identity,
		OwnerName:     name,
		CreatedAt:     now,
		UpdatedAt:     now,
		History:       session.NewHistory(session.MaxHistoryEntries),
	})
	candidate, _ = candidate.WithParticipant(session.Participant{Identity: identity, DisplayName: name, JoinedAt: now})
	candidate.Capacity = max(candidate.Capacity, candidate.Occupancy())
	candidate.History.Record(session.HistoryEntry{Timestamp: now, Type: session.EventJoin})
	candidate.History.Record(session.HistoryEntry{Timestamp: now, Type: session.EventCreate})

	releaseViewer, err := s.viewerLocks.acquire(ctx, identity)
	if err != nil {
		logger.WarnContext(ctx, "failed to acquire viewer lock", "error_kind", ErrorKind(err), "error", err)
		return Result{}, err
	}
	defer releaseViewer()

	if conflicting, found := s.findConflict(candidate, identity, now); found {
		err := &session.ConflictError{Conflicting: conflicting}
		logger.InfoContext(ctx, "create blocked by conflict", "error_kind", ErrorKind(err), "conflicting_id", conflicting.ID)
		return Result{}, err
	}

	rctx, cancel := s.repoContext(ctx)
	persisted, err := s.repo.Create(rctx, candidate)
	cancel()
	if err != nil {
		mapped := mapRepoError("create session", err)
		logger.ErrorContext(ctx, "failed to persist session", "error_kind", ErrorKind(mapped), "error", err)
		return Result{}, mapped
	}
	persisted = session.Normalize(persisted)

	s.store.Prepend(persisted)
	s.indexUpsert(ctx, logger, persisted)
	s.notify(ctx, logger, NewNotification(NotificationCreated, viewer, persisted, now, s.opts.Location))
	logger.InfoContext(ctx, "session created", "session_id", persisted.ID)
	return applied(persisted), nil
}

// Join seats viewer in session id.
func (s *SessionService) Join(ctx context.Context, viewer session.Viewer, id string) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("SessionService is nil")
	}
	identity := session.IdentityKey(viewer.Identity)
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "Join", "viewer", identity, "session_id", id)

	fresh, release, err := s.begin(ctx, logger, identity, id, lockViewer)
	if err != nil {
		return Result{}, err
	}
	defer release()

	now := s.now()
	meta := session.DeriveMeta(fresh, identity, now, s.opts.Location)
	if meta.Joined {
		logger.InfoContext(ctx, "join not applied", "outcome", OutcomeNoChange, "reason", ReasonAlreadyJoined)
		return noChange(ReasonAlreadyJoined, fresh), nil
	}

	if conflicting, found := s.findConflict(fresh, identity, now); found {
		err := &session.ConflictError{Conflicting: conflicting}
		logger.InfoContext(ctx, "join blocked by conflict", "error_kind", ErrorKind(err), "conflicting_id", conflicting.ID)
		return Result{}, err
	}

	if res, blocked := joinPrecondition(fresh, meta); blocked {
		logger.InfoContext(ctx, "join not applied", "outcome", res.Outcome, "reason", res.Reason)
		return res, nil
	}

	next, _ := fresh.WithParticipant(session.Participant{Identity: identity, DisplayName: displayName(viewer), JoinedAt: now})
	next.History.Record(session.HistoryEntry{Timestamp: now, Type: session.EventJoin})
	next.UpdatedAt = now

	persisted, err := s.persistUpdate(ctx, logger, next)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, logger, NewNotification(NotificationJoined, viewer, persisted, now, s.opts.Location))
	logger.InfoContext(ctx, "session joined", "occupancy", persisted.Occupancy())
	return applied(persisted), nil
}

func joinPrecondition(fresh session.Session, meta session.Meta) (Result, bool) {
	switch {
	case meta.Phase == session.PhaseUnscheduled:
		return rejected(ReasonUnscheduled, fresh), true
	case meta.HasStarted:
		return rejected(ReasonStarted, fresh), true
	case meta.IsDeadlinePassed:
		return rejected(ReasonDeadlinePassed, fresh), true
	case meta.IsFull:
		return rejected(ReasonFull, fresh), true
	}
	return Result{}, false
}

// Withdraw removes viewer from session id.
func (s *SessionService) Withdraw(ctx context.Context, viewer session.Viewer, id string) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("SessionService is nil")
	}
	identity := session.IdentityKey(viewer.Identity)
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "Withdraw", "viewer", identity, "session_id", id)

	fresh, release, err := s.begin(ctx, logger, identity, id, lockSession)
	if err != nil {
		return Result{}, err
	}
	defer release()

	next, ok := fresh.WithoutParticipant(identity)
	if !ok {
		logger.InfoContext(ctx, "withdraw not applied", "reason", ReasonNotJoined)
		return noChange(ReasonNotJoined, fresh), nil
	}
	now := s.now()
	next.History.Record(session.HistoryEntry{Timestamp: now, Type: session.EventLeave})
	next.UpdatedAt = now

	persisted, err := s.persistUpdate(ctx, logger, next)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, logger, NewNotification(NotificationLeft, viewer, persisted, now, s.opts.Location))
	logger.InfoContext(ctx, "session left", "occupancy", persisted.Occupancy())
	return applied(persisted), nil
}

// Edit replaces the owner-controlled fields of session id with draft.
// Capacity below the current occupancy is widened to the occupancy.
func (s *SessionService) Edit(ctx context.Context, viewer session.Viewer, id string, draft session.Draft) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("SessionService is nil")
	}
	identity := session.IdentityKey(viewer.Identity)
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "Edit", "viewer", identity, "session_id", id)

	fresh, release, err := s.begin(ctx, logger, identity, id, lockViewer)
	if err != nil {
		return Result{}, err
	}
	defer release()

	now := s.now()
	if res, blocked := s.ownerPrecondition(fresh, identity, now); blocked {
		logger.InfoContext(ctx, "edit not applied", "reason", res.Reason)
		return res, nil
	}

	valid, err := session.ParseDraft(draft, now, s.draftPolicy())
	if err != nil {
		logger.WarnContext(ctx, "session validation failed", "error_kind", ErrorKind(err), "error", err)
		return Result{}, err
	}

	next := valid.ApplyTo(fresh)
	next.History.Record(session.HistoryEntry{Timestamp: now, Type: session.EventUpdate})
	next.UpdatedAt = now

	if next.HasParticipant(identity) {
		if conflicting, found := s.findConflict(next, identity, now); found {
			err := &session.ConflictError{Conflicting: conflicting}
			logger.InfoContext(ctx, "edit blocked by conflict", "error_kind", ErrorKind(err), "conflicting_id", conflicting.ID)
			return Result{}, err
		}
	}

	persisted, err := s.persistUpdate(ctx, logger, next)
	if err != nil {
		return Result{}, err
	}
	s.indexUpsert(ctx, logger, persisted)
	logger.InfoContext(ctx, "session updated", "capacity", persisted.Capacity)
	return applied(persisted), nil
}

// SetGuests replaces the named guest seats of session id. Guests already
// present keep their ids. A list that would exceed capacity is rejected.
func (s *SessionService) SetGuests(ctx context.Context, viewer session.Viewer, id string, names []string) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("SessionService is nil")
	}
	identity := session.IdentityKey(viewer.Identity)
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "SetGuests", "viewer", identity, "session_id", id)

	fresh, release, err := s.begin(ctx, logger, identity, id, lockSession)
	if err != nil {
		return Result{}, err
	}
	defer release()

	now := s.now()
	if res, blocked := s.ownerPrecondition(fresh, identity, now); blocked {
		logger.InfoContext(ctx, "set guests not applied", "reason", res.Reason)
		return res, nil
	}

	guests := s.mergeGuests(fresh.Guests, names, now)
	if seats := len(fresh.Participants) + len(guests); seats > fresh.Capacity {
		vErr := &session.ValidationError{}
		vErr.Add("guests", fmt.Sprintf("guests exceed capacity: %d seats requested, capacity is %d", seats, fresh.Capacity))
		logger.WarnContext(ctx, "guest validation failed", "error_kind", ErrorKind(vErr))
		return Result{}, vErr
	}

	next := fresh.Clone()
	next.Guests = guests
	next.AttendeeCount = len(next.Participants) + len(next.Guests)
	next.History.Record(session.HistoryEntry{Timestamp: now, Type: session.EventUpdate})
	next.UpdatedAt = now

	persisted, err := s.persistUpdate(ctx, logger, next)
	if err != nil {
		return Result{}, err
	}
	logger.InfoContext(ctx, "guests updated", "guests", len(persisted.Guests))
	return applied(persisted), nil
}

// Delete removes session id. The caller is expected to have confirmed the
// action with the owner.
func (s *SessionService) Delete(ctx context.Context, viewer session.Viewer, id string) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("SessionService is nil")
	}
	identity := session.IdentityKey(viewer.Identity)
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "Delete", "viewer", identity, "session_id", id)

	fresh, release, err := s.begin(ctx, logger, identity, id, lockSession)
	if err != nil {
		return Result{}, err
	}
	defer release()

	now := s.now()
	if res, blocked := s.ownerPrecondition(fresh, identity, now); blocked {
		logger.InfoContext(ctx, "delete not applied", "reason", res.Reason)
		return res, nil
	}

	rctx, cancel := s.repoContext(ctx)
	err = s.repo.Delete(rctx, id)
	cancel()
	if err != nil {
		mapped := mapRepoError("delete session", err)
		if !errors.Is(mapped, ErrNotFound) {
			logger.ErrorContext(ctx, "failed to delete session", "error_kind", ErrorKind(mapped), "error", err)
			return Result{}, mapped
		}
	}

	s.store.Remove(id)
	s.indexRemove(ctx, logger, id)
	s.notify(ctx, logger, NewNotification(NotificationCancelled, viewer, fresh, now, s.opts.Location))
	logger.InfoContext(ctx, "session deleted")
	return applied(fresh), nil
}

// Prune drops sessions past the retention window from the store. It returns
// the number removed and the number remaining.
func (s *SessionService) Prune(ctx context.Context) (int, int) {
	if s == nil {
		return 0, 0
	}
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "Prune")
	before := s.store.Len()
	remaining := s.store.PruneExpired(s.now(), s.opts.RetentionDays)
	removed := max(0, before-remaining)
	if removed > 0 {
		s.reindex(ctx, logger)
		logger.InfoContext(ctx, "expired sessions pruned", "removed", removed, "remaining", remaining)
	}
	return removed, remaining
}

// Refresh replaces the store with the repository's sessions, normalized and
// pruned, and rebuilds the search index.
func (s *SessionService) Refresh(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("SessionService is nil")
	}
	logger := serviceLogger(ctx, s.logger, sessionServiceName, "Refresh")
	if s.repo == nil {
		return errRepositoryNotConfigured
	}

	rctx, cancel := s.repoContext(ctx)
	fetched, err := s.repo.FetchAll(rctx)
	cancel()
	if err != nil {
		mapped := mapRepoError("fetch sessions", err)
		logger.ErrorContext(ctx, "failed to fetch sessions", "error_kind", ErrorKind(mapped), "error", err)
		return mapped
	}

	normalized := make([]session.Session, 0, len(fetched))
	for _, raw := range fetched {
		normalized = append(normalized, session.Normalize(raw))
	}
	s.store.SetAll(normalized)
	remaining := s.store.PruneExpired(s.now(), s.opts.RetentionDays)
	s.reindex(ctx, logger)
	logger.InfoContext(ctx, "sessions refreshed", "fetched", len(fetched), "retained", remaining)
	return nil
}

// lockScope selects the locks a transition holds until it commits.
type lockScope int

const (
	// lockSession serializes transitions on one session.
	lockSession lockScope = iota
	// lockViewer also serializes the viewer's conflict-checked transitions
	// across sessions. The viewer lock is always taken before the session
	// lock.
	lockViewer
)

// begin validates the viewer, takes the locks for scope and loads the
// freshest state. On success the caller must invoke release.
func (s *SessionService) begin(ctx context.Context, logger *slog.Logger, identity, id string, scope lockScope) (session.Session, func(), error) {
	if identity == "" {
		logger.WarnContext(ctx, "transition rejected", "error_kind", ErrorKind(ErrUnauthorized))
		return session.Session{}, nil, ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return session.Session{}, nil, ErrNotFound
	}
	if s.repo == nil {
		return session.Session{}, nil, errRepositoryNotConfigured
	}

	releaseViewer := func() {}
	if scope == lockViewer {
		var err error
		releaseViewer, err = s.viewerLocks.acquire(ctx, identity)
		if err != nil {
			logger.WarnContext(ctx, "failed to acquire viewer lock", "error_kind", ErrorKind(err), "error", err)
			return session.Session{}, nil, err
		}
	}
	releaseSession, err := s.locks.acquire(ctx, id)
	if err != nil {
		releaseViewer()
		logger.WarnContext(ctx, "failed to acquire session lock", "error_kind", ErrorKind(err), "error", err)
		return session.Session{}, nil, err
	}
	release := func() {
		releaseSession()
		releaseViewer()
	}

	rctx, cancel := s.repoContext(ctx)
	fresh, err := s.repo.Get(rctx, id)
	cancel()
	if err != nil {
		release()
		mapped := mapRepoError("get session", err)
		if errors.Is(mapped, ErrNotFound) {
			if s.store.Remove(id) {
				s.indexRemove(ctx, logger, id)
			}
			logger.InfoContext(ctx, "session not found", "error_kind", ErrorKind(mapped))
			return session.Session{}, nil, mapped
		}
		logger.ErrorContext(ctx, "failed to load session", "error_kind", ErrorKind(mapped), "error", err)
		return session.Session{}, nil, mapped
	}
	return session.Normalize(fresh), release, nil
}

func (s *SessionService) ownerPrecondition(fresh session.Session, identity string, now time.Time) (Result, bool) {
	if !fresh.IsOwnedBy(identity) {
		return rejected(ReasonNotOwner, fresh), true
	}
	r, _ := fresh.Range(s.opts.Location)
	if scheduler.HasStarted(r, now) {
		return rejected(ReasonStarted, fresh), true
	}
	return Result{}, false
}

func (s *SessionService) persistUpdate(ctx context.Context, logger *slog.Logger, next session.Session) (session.Session, error) {
	rctx, cancel := s.repoContext(ctx)
	persisted, err := s.repo.Update(rctx, next)
	cancel()
	if err != nil {
		mapped := mapRepoError("update session", err)
		logger.ErrorContext(ctx, "failed to persist session", "error_kind", ErrorKind(mapped), "error", err)
		return session.Session{}, mapped
	}
	persisted = session.Normalize(persisted)

	replaced := s.store.ReplaceWhere(persisted.ID, func(session.Session) (session.Session, bool) {
		return persisted, true
	})
	if !replaced {
		s.store.Prepend(persisted)
	}
	return persisted, nil
}

func (s *SessionService) findConflict(candidate session.Session, identity string, now time.Time) (session.Session, bool) {
	r, ok := candidate.Range(s.opts.Location)
	if !ok {
		return session.Session{}, false
	}
	snapshot := s.store.Snapshot()
	commitments := make([]scheduler.Commitment, 0, len(snapshot))
	for _, existing := range snapshot {
		er, _ := existing.Range(s.opts.Location)
		commitments = append(commitments, scheduler.Commitment{
			ID:     existing.ID,
			Range:  er,
			Joined: existing.HasParticipant(identity),
		})
	}
	found, ok := scheduler.FindConflict(scheduler.Commitment{ID: candidate.ID, Range: r}, commitments, now)
	if !ok {
		return session.Session{}, false
	}
	for _, existing := range snapshot {
		if existing.ID == found.ID {
			return existing, true
		}
	}
	return session.Session{}, false
}

func (s *SessionService) mergeGuests(existing []session.Guest, names []string, now time.Time) []session.Guest {
	byName := make(map[string]session.Guest, len(existing))
	for _, g := range existing {
		byName[strings.ToLower(strings.TrimSpace(g.Name))] = g
	}
	guests := make([]session.Guest, 0, len(names))
	for _, name := range names {
		if g, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
			guests = append(guests, g)
			continue
		}
		guests = append(guests, session.Guest{ID: s.idGenerator(), Name: name, CreatedAt: now})
	}
	return session.NormalizeGuests(guests)
}

func (s *SessionService) draftPolicy() session.DraftPolicy {
	return session.DraftPolicy{Location: s.opts.Location, DeadlineLead: s.opts.DeadlineLead}
}

func (s *SessionService) repoContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RepositoryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.RepositoryTimeout)
}

func (s *SessionService) notify(ctx context.Context, logger *slog.Logger, n Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.WarnContext(ctx, "notification failed", "notification_type", n.Type, "error", err)
	}
}

func (s *SessionService) indexUpsert(ctx context.Context, logger *slog.Logger, sess session.Session) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(sess); err != nil {
		logger.WarnContext(ctx, "failed to index session", "session_id", sess.ID, "error", err)
	}
}

func (s *SessionService) indexRemove(ctx context.Context, logger *slog.Logger, id string) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(id); err != nil {
		logger.WarnContext(ctx, "failed to drop session from index", "session_id", id, "error", err)
	}
}

func (s *SessionService) reindex(ctx context.Context, logger *slog.Logger) {
	if s.index == nil {
		return
	}
	if err := s.index.Rebuild(s.store.Snapshot()); err != nil {
		logger.WarnContext(ctx, "failed to rebuild search index", "error", err)
	}
}

func displayName(viewer session.Viewer) string {
	if name := strings.TrimSpace(viewer.DisplayName); name != "" {
		return name
	}
	if email := strings.TrimSpace(viewer.Email); email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			return email[:at]
		}
		return email
	}
	return session.IdentityKey(viewer.Identity)
}
