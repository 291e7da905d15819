package session

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/session-coordinator/internal/scheduler"
)

// DefaultDeadlineLead is the minimum gap between an RSVP deadline and the start.
const DefaultDeadlineLead = 30 * time.Minute

// Draft is the owner-supplied content of a session, as submitted for create or edit.
type Draft struct {
	Title         string     `json:"title" validate:"required,max=120"`
	Location      string     `json:"location" validate:"required,max=160"`
	City          string     `json:"city" validate:"max=80"`
	Date          string     `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string     `json:"start_time" validate:"required,clock"`
	DurationHours float64    `json:"duration_hours" validate:"gte=0,lte=24"`
	Skill         string     `json:"skill_level" validate:"omitempty,skill"`
	Capacity      int        `json:"capacity" validate:"gte=2,lte=500"`
	TotalCost     float64    `json:"total_cost" validate:"gte=0,lte=100000"`
	RSVPDeadline  *time.Time `json:"rsvp_deadline"`
	Notes         string     `json:"notes" validate:"max=2000"`
	PaymentLink   string     `json:"payment_link" validate:"omitempty,http_url,max=500"`
	CourtBooked   bool       `json:"court_booked"`
}

// DraftPolicy carries the environment a draft is validated against.
type DraftPolicy struct {
	Location     *time.Location
	DeadlineLead time.Duration
}

// ValidDraft is a draft that passed every check, with defaults applied.
type ValidDraft struct {
	Title         string
	Location      string
	City          string
	Date          string
	StartTime     string
	DurationHours float64
	Skill         SkillLevel
	Capacity      int
	TotalCost     float64
	RSVPDeadline  *time.Time
	Notes         string
	PaymentLink   string
	CourtBooked   bool
	Range         scheduler.Range
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return scheduler.ValidClock(fl.Field().String())
	})
	_ = v.RegisterValidation("skill", func(fl validator.FieldLevel) bool {
		_, ok := ParseSkillLevel(fl.Field().String())
		return ok
	})
	return v
}

// ParseDraft validates d at now and returns the normalized result, or a
// *ValidationError naming every offending field.
func ParseDraft(d Draft, now time.Time, policy DraftPolicy) (ValidDraft, error) {
	d = trimDraft(d)
	vErr := &ValidationError{}

	if err := validate.Struct(d); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return ValidDraft{}, fmt.Errorf("session: validate draft: %w", err)
		}
		for _, fe := range fieldErrs {
			vErr.Add(fe.Field(), describeFieldError(fe))
		}
	}

	lead := policy.DeadlineLead
	if lead <= 0 {
		lead = DefaultDeadlineLead
	}

	duration := PersistedDurationHours(d.DurationHours)
	r, ok := scheduler.ComputeRange(d.Date, d.StartTime, duration, policy.Location)
	if ok {
		if !r.Start.After(now) {
			vErr.Add("start", "start must be in the future")
		}
		if d.RSVPDeadline != nil {
			deadline := *d.RSVPDeadline
			switch {
			case !deadline.After(now):
				vErr.Add("rsvp_deadline", "rsvp deadline must be in the future")
			case deadline.After(r.Start.Add(-lead)):
				vErr.Add("rsvp_deadline", fmt.Sprintf("rsvp deadline must be at least %s before the start", formatLead(lead)))
			}
		}
	}

	if vErr.HasErrors() {
		return ValidDraft{}, vErr
	}

	skill, ok := ParseSkillLevel(d.Skill)
	if !ok {
		skill = SkillIntermediate
	}
	var deadline *time.Time
	if d.RSVPDeadline != nil {
		value := *d.RSVPDeadline
		deadline = &value
	}

	return ValidDraft{
		Title:         d.Title,
		Location:      d.Location,
		City:          d.City,
		Date:          d.Date,
		StartTime:     d.StartTime,
		DurationHours: duration,
		Skill:         skill,
		Capacity:      d.Capacity,
		TotalCost:     RoundCents(d.TotalCost),
		RSVPDeadline:  deadline,
		Notes:         d.Notes,
		PaymentLink:   d.PaymentLink,
		CourtBooked:   d.CourtBooked,
		Range:         r,
	}, nil
}

// ApplyTo copies the draft content onto s. Capacity is widened to the
// current occupancy when the draft asks for less.
func (v ValidDraft) ApplyTo(s Session) Session {
	out := s.Clone()
	out.Title = v.Title
	out.Location = v.Location
	out.City = v.City
	out.Date = v.Date
	out.StartTime = v.StartTime
	out.DurationHours = v.DurationHours
	out.Skill = v.Skill
	out.Capacity = max(v.Capacity, out.Occupancy())
	out.TotalCost = v.TotalCost
	out.RSVPDeadline = nil
	if v.RSVPDeadline != nil {
		deadline := *v.RSVPDeadline
		out.RSVPDeadline = &deadline
	}
	out.Notes = v.Notes
	out.PaymentLink = v.PaymentLink
	out.CourtBooked = v.CourtBooked
	return out
}

// PersistedDurationHours rounds a duration to whole hours, at least one.
func PersistedDurationHours(hours float64) float64 {
	return math.Max(1, math.Round(scheduler.EffectiveDurationHours(hours)))
}

func trimDraft(d Draft) Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Location = strings.TrimSpace(d.Location)
	d.City = strings.TrimSpace(d.City)
	d.Date = strings.TrimSpace(d.Date)
	d.StartTime = strings.TrimSpace(d.StartTime)
	d.Skill = strings.TrimSpace(d.Skill)
	d.Notes = strings.TrimSpace(d.Notes)
	d.PaymentLink = strings.TrimSpace(d.PaymentLink)
	return d
}

func describeFieldError(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "datetime":
		return label + " must be a date in YYYY-MM-DD form"
	case "clock":
		return label + " must be a time in HH:MM form"
	case "skill":
		return label + " must be one of Beginner, Intermediate, Advanced"
	case "http_url":
		return label + " must be an absolute http(s) URL"
	default:
		return label + " is invalid"
	}
}

func formatLead(lead time.Duration) string {
	if lead%time.Hour == 0 {
		hours := int(lead / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	if lead%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(lead/time.Minute))
	}
	return lead.String()
}
