package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/session-coordinator/internal/application"
	"github.com/example/session-coordinator/internal/query"
	"github.com/example/session-coordinator/internal/session"
)

const sessionHandlerName = "SessionHandler"

type sessionService interface {
	Create(ctx context.Context, viewer session.Viewer, draft session.Draft) (application.Result, error)
	Join(ctx context.Context, viewer session.Viewer, id string) (application.Result, error)
	Withdraw(ctx context.Context, viewer session.Viewer, id string) (application.Result, error)
	Edit(ctx context.Context, viewer session.Viewer, id string, draft session.Draft) (application.Result, error)
	Delete(ctx context.Context, viewer session.Viewer, id string) (application.Result, error)
	SetGuests(ctx context.Context, viewer session.Viewer, id string, names []string) (application.Result, error)
	Get(ctx context.Context, viewer session.Viewer, id string) (query.Item, error)
	Upcoming(ctx context.Context, viewer session.Viewer, q application.ViewQuery) ([]query.Item, error)
	Dashboard(ctx context.Context, viewer session.Viewer, q application.ViewQuery) (query.Stats, error)
	Joined(ctx context.Context, viewer session.Viewer) ([]query.Item, error)
	Hosted(ctx context.Context, viewer session.Viewer) ([]query.Item, error)
	History(ctx context.Context, viewer session.Viewer) []query.Item
	Locations(ctx context.Context) []string
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, responder: newResponder(logger), logger: logger}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q, err := parseViewQuery(r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	viewer, _ := ViewerFromContext(r.Context())
	items, err := h.service.Upcoming(r.Context(), viewer, q)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listResponse{Sessions: toSessionDTOs(items)})
}

func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q, err := parseViewQuery(r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	viewer, _ := ViewerFromContext(r.Context())
	stats, err := h.service.Dashboard(r.Context(), viewer, q)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, stats)
}

func (h *SessionHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	viewer, _ := ViewerFromContext(r.Context())
	item, err := h.service.Get(r.Context(), viewer, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionDTO(item.Session, &item.Meta))
}

func (h *SessionHandler) Joined(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	viewer, _ := ViewerFromContext(r.Context())
	items, err := h.service.Joined(r.Context(), viewer)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listResponse{Sessions: toSessionDTOs(items)})
}

func (h *SessionHandler) Hosted(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	viewer, _ := ViewerFromContext(r.Context())
	items, err := h.service.Hosted(r.Context(), viewer)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listResponse{Sessions: toSessionDTOs(items)})
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	viewer, _ := ViewerFromContext(r.Context())
	items := h.service.History(r.Context(), viewer)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listResponse{Sessions: toSessionDTOs(items)})
}

func (h *SessionHandler) Locations(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	locations := h.service.Locations(r.Context())
	if locations == nil {
		locations = []string{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, locationsResponse{Locations: locations})
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var draft session.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	viewer, _ := ViewerFromContext(r.Context())
	res, err := h.service.Create(r.Context(), viewer, draft)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, sessionHandlerName, "Create").InfoContext(r.Context(), "session created", "session_id", res.Session.ID)
	h.renderResult(r.Context(), w, res, http.StatusCreated)
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var draft session.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	viewer, _ := ViewerFromContext(r.Context())
	res, err := h.service.Edit(r.Context(), viewer, id, draft)
	h.respond(r.Context(), w, res, err)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	viewer, _ := ViewerFromContext(r.Context())
	res, err := h.service.Delete(r.Context(), viewer, id)
	h.respond(r.Context(), w, res, err)
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	viewer, _ := ViewerFromContext(r.Context())
	res, err := h.service.Join(r.Context(), viewer, id)
	h.respond(r.Context(), w, res, err)
}

func (h *SessionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	viewer, _ := ViewerFromContext(r.Context())
	res, err := h.service.Withdraw(r.Context(), viewer, id)
	h.respond(r.Context(), w, res, err)
}

func (h *SessionHandler) SetGuests(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req guestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	viewer, _ := ViewerFromContext(r.Context())
	res, err := h.service.SetGuests(r.Context(), viewer, id, req.Names)
	h.respond(r.Context(), w, res, err)
}

func (h *SessionHandler) respond(ctx context.Context, w http.ResponseWriter, res application.Result, err error) {
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.renderResult(ctx, w, res, http.StatusOK)
}

func (h *SessionHandler) renderResult(ctx context.Context, w http.ResponseWriter, res application.Result, status int) {
	payload := transitionResponse{
		Changed: res.Changed(),
		Outcome: string(res.Outcome),
		Reason:  string(res.Reason),
	}
	if res.Session.ID != "" {
		dto := toSessionDTO(res.Session, nil)
		payload.Session = &dto
	}
	if !res.Changed() {
		status = http.StatusOK
	}
	h.responder.writeJSON(ctx, w, status, payload)
}

func (h *SessionHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !h.ready(w) {
		return "", false
	}
	id, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return "", false
	}
	return id, true
}

func parseViewQuery(values url.Values) (application.ViewQuery, error) {
	var q application.ViewQuery
	if raw := strings.TrimSpace(values.Get("skill")); raw != "" {
		level, ok := session.ParseSkillLevel(raw)
		if !ok {
			return q, errInvalidFilter
		}
		q.Filter.Skill = level
	}
	if raw := strings.TrimSpace(values.Get("joinable")); raw != "" {
		joinable, err := strconv.ParseBool(raw)
		if err != nil {
			return q, errInvalidFilter
		}
		q.Filter.JoinableOnly = joinable
	}
	q.Filter.Location = strings.TrimSpace(values.Get("location"))
	q.Text = strings.TrimSpace(values.Get("q"))
	return q, nil
}

type guestsRequest struct {
	Names []string `json:"names"`
}

type ownerDTO struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

type sessionDTO struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Location      string                 `json:"location"`
	City          string                 `json:"city,omitempty"`
	Date          string                 `json:"date"`
	StartTime     string                 `json:"start_time"`
	DurationHours float64                `json:"duration_hours"`
	SkillLevel    string                 `json:"skill_level"`
	Capacity      int                    `json:"capacity"`
	TotalCost     float64                `json:"total_cost"`
	AttendeeCount int                    `json:"attendee_count"`
	Participants  []session.Participant  `json:"participants"`
	Guests        []session.Guest        `json:"guests"`
	RSVPDeadline  *time.Time             `json:"rsvp_deadline,omitempty"`
	Owner         ownerDTO               `json:"owner"`
	Notes         string                 `json:"notes,omitempty"`
	PaymentLink   string                 `json:"payment_link,omitempty"`
	CourtBooked   bool                   `json:"court_booked"`
	History       []session.HistoryEntry `json:"history"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Meta          *session.Meta          `json:"meta,omitempty"`
}

type listResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type locationsResponse struct {
	Locations []string `json:"locations"`
}

type transitionResponse struct {
	Changed bool        `json:"changed"`
	Outcome string      `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
	Session *sessionDTO `json:"session,omitempty"`
}

func toSessionDTO(s session.Session, meta *session.Meta) sessionDTO {
	participants := s.Participants
	if participants == nil {
		participants = []session.Participant{}
	}
	guests := s.Guests
	if guests == nil {
		guests = []session.Guest{}
	}
	return sessionDTO{
		ID:            s.ID,
		Title:         s.Title,
		Location:      s.Location,
		City:          s.City,
		Date:          s.Date,
		StartTime:     s.StartTime,
		DurationHours: s.DurationHours,
		SkillLevel:    string(s.Skill),
		Capacity:      s.Capacity,
		TotalCost:     s.TotalCost,
		AttendeeCount: s.AttendeeCount,
		Participants:  participants,
		Guests:        guests,
		RSVPDeadline:  s.RSVPDeadline,
		Owner:         ownerDTO{Identity: s.OwnerIdentity, Name: s.OwnerName},
		Notes:         s.Notes,
		PaymentLink:   s.PaymentLink,
		CourtBooked:   s.CourtBooked,
		History:       s.History.Entries(),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		Meta:          meta,
	}
}

func toSessionDTOs(items []query.Item) []sessionDTO {
	out := make([]sessionDTO, 0, len(items))
	for _, item := range items {
		meta := item.Meta
		out = append(out, toSessionDTO(item.Session, &meta))
	}
	return out
}
