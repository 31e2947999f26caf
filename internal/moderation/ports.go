package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/escena-local/directory/internal/models"
)

// ApprovalUpdate carries the approval fields written by SetApproval. At and By are
// only written on an unapproved to approved transition.
type ApprovalUpdate struct {
	Approved bool
	At       time.Time
	By       uuid.UUID
}

// EntityStore persists the six entity kinds behind one interface; kind selects the table.
// Lookups return sentinel.ErrNotFound, uniqueness failures sentinel.ErrConflict.
type EntityStore interface {
	Create(ctx context.Context, e *models.Entity) error
	GetByID(ctx context.Context, kind models.EntityKind, id uuid.UUID) (*models.Entity, error)
	GetBySlug(ctx context.Context, kind models.EntityKind, slug string, approvedOnly bool) (*models.Entity, error)
	GetByOwner(ctx context.Context, kind models.EntityKind, userID uuid.UUID) (*models.Entity, error)
	// SetApproval applies u and returns the updated entity.
	SetApproval(ctx context.Context, kind models.EntityKind, id uuid.UUID, u ApprovalUpdate) (*models.Entity, error)
	// SetOwner binds the entity to userID. It fails with sentinel.ErrConflict when the
	// entity is already owned by someone else.
	SetOwner(ctx context.Context, kind models.EntityKind, id, userID uuid.UUID) error
	CountAwaitingReview(ctx context.Context, kind models.EntityKind) (int, error)
	ListAwaitingReview(ctx context.Context, kind models.EntityKind) ([]*models.Entity, error)
	ListApproved(ctx context.Context, kind models.EntityKind, limit int) ([]*models.Entity, error)
	SearchClaimable(ctx context.Context, kind models.EntityKind, query string, limit int) ([]*models.Entity, error)
}

// ClaimStore persists claims. Create must fail with sentinel.ErrConflict when the
// user already has a pending claim on the same entity.
type ClaimStore interface {
	Create(ctx context.Context, c *models.Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	// Decide moves a pending claim to status. It returns sentinel.ErrNotFound when the
	// claim does not exist or is no longer pending.
	Decide(ctx context.Context, id uuid.UUID, status models.ClaimStatus, reason *string, at time.Time, by uuid.UUID) (*models.Claim, error)
	CountPending(ctx context.Context) (int, error)
	ListPending(ctx context.Context) ([]*models.Claim, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Claim, error)
}

// EventStore persists event publication records.
type EventStore interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	UpdateSchedule(ctx context.Context, e *models.Event) error
	// CountInWindow counts userID's non-exempt events dated within [from, to], skipping exclude.
	CountInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time, exclude *uuid.UUID) (int, error)
	// Serialize runs fn while holding a lock keyed on userID, so a count followed by an
	// insert cannot interleave with another publication by the same user.
	Serialize(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error
}

// UserStore exposes the user facts the engine needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error
}

// Transactor runs fn atomically when the backing store supports it.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier receives notification intents after the state change committed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Observer is told when the pending queue may have changed.
type Observer interface {
	QueueChanged(ctx context.Context)
}
