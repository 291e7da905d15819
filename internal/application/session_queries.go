package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/session-coordinator/internal/query"
	"github.com/example/session-coordinator/internal/search"
	"github.com/example/session-coordinator/internal/session"
)

// ViewQuery narrows the upcoming view.
type ViewQuery struct {
	Filter query.Filter
	// Text is matched against title, location, city and notes.
	Text string
}

// Upcoming lists sessions that have not ended, filtered and sorted by start.
func (s *SessionService) Upcoming(ctx context.Context, viewer session.Viewer, q ViewQuery) ([]query.Item, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	scope := s.scope(viewer)
	view, err := s.upcomingView(ctx, q, scope)
	if err != nil {
		return nil, err
	}
	return query.WithMeta(view, scope), nil
}

// Dashboard summarizes the upcoming view for viewer.
func (s *SessionService) Dashboard(ctx context.Context, viewer session.Viewer, q ViewQuery) (query.Stats, error) {
	if s == nil {
		return query.Stats{}, fmt.Errorf("SessionService is nil")
	}
	scope := s.scope(viewer)
	view, err := s.upcomingView(ctx, q, scope)
	if err != nil {
		return query.Stats{}, err
	}
	return query.Dashboard(view, s.store.Snapshot(), scope), nil
}

// Joined lists the sessions viewer is seated in that have not ended.
func (s *SessionService) Joined(ctx context.Context, viewer session.Viewer) ([]query.Item, error) {
	if session.IdentityKey(viewer.Identity) == "" {
		return nil, ErrUnauthorized
	}
	scope := s.scope(viewer)
	return query.WithMeta(query.JoinedByViewer(s.store.Snapshot(), scope), scope), nil
}

// Hosted lists the sessions viewer owns that have not ended.
func (s *SessionService) Hosted(ctx context.Context, viewer session.Viewer) ([]query.Item, error) {
	if session.IdentityKey(viewer.Identity) == "" {
		return nil, ErrUnauthorized
	}
	scope := s.scope(viewer)
	return query.WithMeta(query.HostedByViewer(s.store.Snapshot(), scope), scope), nil
}

// History lists recently ended sessions within the retention window.
func (s *SessionService) History(ctx context.Context, viewer session.Viewer) []query.Item {
	scope := s.scope(viewer)
	return query.WithMeta(query.RecentHistory(s.store.Snapshot(), scope, s.opts.RetentionDays), scope)
}

// Get returns one session with meta for viewer.
func (s *SessionService) Get(ctx context.Context, viewer session.Viewer, id string) (query.Item, error) {
	found, ok := s.store.FindByID(id)
	if !ok {
		return query.Item{}, ErrNotFound
	}
	scope := s.scope(viewer)
	return query.Item{Session: found, Meta: session.DeriveMeta(found, scope.Viewer, scope.Now, scope.Location)}, nil
}

// Locations lists the distinct venues across all retained sessions.
func (s *SessionService) Locations(ctx context.Context) []string {
	return query.Locations(s.store.Snapshot())
}

func (s *SessionService) upcomingView(ctx context.Context, q ViewQuery, scope query.Scope) ([]session.Session, error) {
	filter := q.Filter
	text := strings.TrimSpace(q.Text)
	snapshot := s.store.Snapshot()
	if text != "" {
		ids, err := s.matchText(ctx, snapshot, text)
		if err != nil {
			return nil, err
		}
		filter.IDs = ids
	}
	return query.UpcomingFiltered(snapshot, filter, scope), nil
}

func (s *SessionService) matchText(ctx context.Context, snapshot []session.Session, text string) (map[string]struct{}, error) {
	if s.index != nil {
		ids, err := s.index.Match(text, max(search.DefaultLimit, len(snapshot)))
		if err == nil {
			return ids, nil
		}
		serviceLogger(ctx, s.logger, sessionServiceName, "Search").
			WarnContext(ctx, "search index unavailable, falling back to substring match", "error", err)
	}
	needle := strings.ToLower(text)
	ids := make(map[string]struct{})
	for _, sess := range snapshot {
		haystack := strings.ToLower(strings.Join([]string{sess.Title, sess.Location, sess.City, sess.Notes}, " "))
		if strings.Contains(haystack, needle) {
			ids[sess.ID] = struct{}{}
		}
	}
	return ids, nil
}

func (s *SessionService) scope(viewer session.Viewer) query.Scope {
	return query.Scope{
		Viewer:   session.IdentityKey(viewer.Identity),
		Now:      s.now(),
		Location: s.opts.Location,
	}
}
