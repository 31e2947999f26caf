package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/sentinel"
)

// Decision is the outcome of an admission policy.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }
func deny(r DenialReason) Decision { return Decision{Reason: r} }

// Message returns the user-facing text for a denial, or "" when allowed.
func (d Decision) Message() string {
	if d.Allowed {
		return ""
	}
	return d.Reason.Message()
}

// Err returns nil when allowed and a *PolicyDeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &PolicyDeniedError{Reason: d.Reason}
}

// ContactDecision is the outcome of the contact-channel policy. DisplayName and Role
// are only set when allowed.
type ContactDecision struct {
	Decision
	DisplayName string      `json:"display_name,omitempty"`
	Role        models.Role `json:"role,omitempty"`
}

// Window returns the inclusive calendar-day range [day-N, day+N] around date.
func (s *Service) Window(date time.Time) (from, to time.Time) {
	day := models.EventDay(date)
	return day.AddDate(0, 0, -s.windowDays), day.AddDate(0, 0, s.windowDays)
}

// CanPublishEvent decides whether userID may publish an event on proposedDate.
// Checks run in order role, entity approval, rate limit and stop at the first
// failure. excludeEventID skips the event being edited. Administrators publish
// through PublishExemptEvent and never reach this policy.
func (s *Service) CanPublishEvent(ctx context.Context, userID uuid.UUID, proposedDate time.Time, excludeEventID *uuid.UUID) (Decision, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return deny(ReasonNoRole), nil
		}
		return Decision{}, s.storeErr("get user", err)
	}
	if !models.CanPublishEvents(u.Role) {
		return deny(ReasonNoRole), nil
	}

	kind, _ := models.KindForRole(u.Role)
	e, err := s.entities.GetByOwner(ctx, kind, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return deny(ReasonNotApproved), nil
		}
		return Decision{}, s.storeErr("get operated entity", err)
	}
	if !e.Approved {
		return deny(ReasonNotApproved), nil
	}

	from, to := s.Window(proposedDate)
	n, err := s.events.CountInWindow(ctx, userID, from, to, excludeEventID)
	if err != nil {
		return Decision{}, s.storeErr("count events in window", err)
	}
	if n >= 1 {
		return deny(ReasonLimitExceeded), nil
	}
	return allow(), nil
}

// CanAccessContact decides whether userID may use the platform contact channel and
// resolves the display name the message is sent under: entity name, then personal
// name, then email.
func (s *Service) CanAccessContact(ctx context.Context, userID uuid.UUID) (ContactDecision, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ContactDecision{Decision: deny(ReasonNotMember)}, nil
		}
		return ContactDecision{}, s.storeErr("get user", err)
	}
	if !models.IsMember(u.Role) {
		return ContactDecision{Decision: deny(ReasonNotMember)}, nil
	}
	if models.IsAdmin(u.Role) {
		return ContactDecision{Decision: allow(), DisplayName: displayName("", u), Role: u.Role}, nil
	}

	kind, _ := models.KindForRole(u.Role)
	e, err := s.entities.GetByOwner(ctx, kind, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ContactDecision{Decision: deny(ReasonPendingReview)}, nil
		}
		return ContactDecision{}, s.storeErr("get operated entity", err)
	}
	if !e.Approved {
		return ContactDecision{Decision: deny(ReasonPendingReview)}, nil
	}
	return ContactDecision{Decision: allow(), DisplayName: displayName(e.Name, u), Role: u.Role}, nil
}

func displayName(entityName string, u *models.User) string {
	switch {
	case entityName != "":
		return entityName
	case u.FullName != "":
		return u.FullName
	default:
		return u.Email
	}
}
