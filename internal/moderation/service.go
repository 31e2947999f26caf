// Package moderation is the entity moderation and admission-control engine: approval
// lifecycle, claim workflow, rejection protocol, admission policies for event
// publication and the contact channel, and the pending-queue aggregator.
package moderation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
)

// DefaultEventWindowDays is the half-width of the publication rate-limit window.
const DefaultEventWindowDays = 5

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   models.Role
}

// IsAdmin reports whether the actor holds the Admin role.
func (a Actor) IsAdmin() bool { return models.IsAdmin(a.Role) }

// Service implements the moderation engine over the store ports.
type Service struct {
	entities     EntityStore
	claims       ClaimStore
	events       EventStore
	users        UserStore
	tx           Transactor
	notifier     Notifier
	observer     Observer
	logger       *zap.Logger
	now          func() time.Time
	windowDays   int
	contactInbox string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifier sets where notification intents go.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithObserver sets the pending-queue observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithTransactor makes multi-record mutations atomic.
func WithTransactor(t Transactor) Option {
	return func(s *Service) {
		if t != nil {
			s.tx = t
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEventWindowDays overrides the ±N day publication window.
func WithEventWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithContactInbox sets the platform address contact messages are sent to.
func WithContactInbox(email string) Option {
	return func(s *Service) { s.contactInbox = email }
}

// New creates a moderation service. All four stores are required.
func New(entities EntityStore, claims ClaimStore, events EventStore, users UserStore, opts ...Option) (*Service, error) {
	if entities == nil {
		return nil, errors.New("entity store is required")
	}
	if claims == nil {
		return nil, errors.New("claim store is required")
	}
	if events == nil {
		return nil, errors.New("event store is required")
	}
	if users == nil {
		return nil, errors.New("user store is required")
	}
	s := &Service{
		entities:   entities,
		claims:     claims,
		events:     events,
		users:      users,
		tx:         directTx{},
		notifier:   nopNotifier{},
		logger:     zap.NewNop(),
		now:        time.Now,
		windowDays: DefaultEventWindowDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EventWindowDays returns the configured half-width of the publication window.
func (s *Service) EventWindowDays() int { return s.windowDays }
