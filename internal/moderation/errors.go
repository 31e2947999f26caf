package moderation

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/escena-local/directory/pkg/sentinel"
)

var (
	// ErrUnauthorized means the caller lacks the role required for the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the entity or claim does not exist, or the claim is no longer decidable.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the write collides with existing state (duplicate pending claim, taken slug).
	ErrConflict = errors.New("conflict")
	// ErrNotClaimable means the entity is owned or not yet public.
	ErrNotClaimable = fmt.Errorf("%w: entity cannot be claimed", ErrConflict)
	// ErrDuplicateClaim means the user already has a pending claim on the entity.
	ErrDuplicateClaim = fmt.Errorf("%w: pending claim already exists", ErrConflict)
	// ErrInvalidInput means the request failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreFailure wraps any persistence error.
	ErrStoreFailure = errors.New("store failure")
)

// DenialReason is the machine-readable cause of an admission denial.
type DenialReason string

const (
	ReasonNoRole        DenialReason = "no_role"
	ReasonNotApproved   DenialReason = "not_approved"
	ReasonLimitExceeded DenialReason = "limit_exceeded"
	ReasonNotMember     DenialReason = "not_member"
	ReasonPendingReview DenialReason = "pending_review"
)

var denialMessages = map[DenialReason]string{
	ReasonNoRole:        "Only venue, festival, organizer and promoter accounts can publish events.",
	ReasonNotApproved:   "Your profile has not been approved yet, so you cannot publish events.",
	ReasonLimitExceeded: "You already have an event scheduled too close to this date.",
	ReasonNotMember:     "The contact channel is only available to registered scene members.",
	ReasonPendingReview: "Your profile is pending review. You can contact us once it is approved.",
}

// Message returns the user-facing text for the reason.
func (r DenialReason) Message() string {
	if m, ok := denialMessages[r]; ok {
		return m
	}
	return string(r)
}

// PolicyDeniedError is the error form of an admission denial. It is business policy,
// not a failure, and is never logged as an error.
type PolicyDeniedError struct {
	Reason DenialReason
}

func (e *PolicyDeniedError) Error() string {
	return "policy denied: " + string(e.Reason)
}

// AsPolicyDenied extracts the denial from err, if any.
func AsPolicyDenied(err error) (*PolicyDeniedError, bool) {
	var pd *PolicyDeniedError
	if errors.As(err, &pd) {
		return pd, true
	}
	return nil, false
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// storeErr translates a store error into the domain taxonomy. Unknown errors are
// logged with the operation name and surfaced as ErrStoreFailure.
func (s *Service) storeErr(op string, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, sentinel.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	s.logger.Error("store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w: %v", op, ErrStoreFailure, err)
}
