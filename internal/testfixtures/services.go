package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/session-coordinator/internal/application"
	"github.com/example/session-coordinator/internal/store"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(""),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// SessionServiceDeps captures dependencies for constructing a session service.
// Nil optional fields fall back to factory defaults.
type SessionServiceDeps struct {
	Repository  application.SessionRepository
	Store       *store.Store
	Notifier    application.Notifier
	Index       application.SearchIndex
	IDGenerator func() string
	Now         func() time.Time
	Options     application.Options
	Logger      *slog.Logger
}

// NewSessionService builds a session service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewSessionServiceWithLogger(
		deps.Repository,
		deps.Store,
		deps.Notifier,
		deps.Index,
		idGen,
		now,
		deps.Options,
		deps.Logger,
	)
}
