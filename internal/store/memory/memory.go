// Package memory is an in-process implementation of the moderation store ports.
// It enforces the same uniqueness rules as the Postgres schema and is used by tests
// and local runs without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/sentinel"
)

// Store holds all records. Use the typed views to get the port implementations.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	entities map[uuid.UUID]models.Entity
	claims   map[uuid.UUID]models.Claim
	events   map[uuid.UUID]models.Event

	txMu sync.Mutex

	locksMu   sync.Mutex
	userLocks map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[uuid.UUID]models.User),
		entities:  make(map[uuid.UUID]models.Entity),
		claims:    make(map[uuid.UUID]models.Claim),
		events:    make(map[uuid.UUID]models.Event),
		userLocks: make(map[uuid.UUID]*sync.Mutex),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Entities returns the moderation.EntityStore view.
func (s *Store) Entities() *EntityStore { return &EntityStore{s} }

// Claims returns the moderation.ClaimStore view.
func (s *Store) Claims() *ClaimStore { return &ClaimStore{s} }

// Events returns the moderation.EventStore view.
func (s *Store) Events() *EventStore { return &EventStore{s} }

// Users returns the moderation.UserStore view.
func (s *Store) Users() *UserStore { return &UserStore{s} }

// RunInTx runs fn with transactions serialized. If fn fails, every record is restored
// to its state before the call.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	users, entities, claims, events := clone(s.users), clone(s.entities), clone(s.claims), clone(s.events)
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.entities, s.claims, s.events = users, entities, claims, events
		s.mu.Unlock()
		return err
	}
	return nil
}

func clone[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) userLock(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.userLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[id] = l
	}
	return l
}

// UserStore implements moderation.UserStore.
type UserStore struct{ s *Store }

// Create adds u, assigning an ID when unset. Emails are unique.
func (r *UserStore) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return sentinel.ErrConflict
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (r *UserStore) UpdateRole(_ context.Context, id uuid.UUID, role models.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

// EntityStore implements moderation.EntityStore.
type EntityStore struct{ s *Store }

func (r *EntityStore) Create(_ context.Context, e *models.Entity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.entities {
		if existing.Kind != e.Kind {
			continue
		}
		if existing.Slug == e.Slug {
			return sentinel.ErrConflict
		}
		if e.OwnerUserID != nil && existing.OwnerUserID != nil && *existing.OwnerUserID == *e.OwnerUserID {
			return sentinel.ErrConflict
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := r.s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	r.s.entities[e.ID] = *e
	return nil
}

func (r *EntityStore) GetByID(_ context.Context, kind models.EntityKind, id uuid.UUID) (*models.Entity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.entities[id]
	if !ok || e.Kind != kind {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (r *EntityStore) GetBySlug(_ context.Context, kind models.EntityKind, slug string, approvedOnly bool) (*models.Entity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.entities {
		if e.Kind == kind && e.Slug == slug && (e.Approved || !approvedOnly) {
			return &e, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (r *EntityStore) GetByOwner(_ context.Context, kind models.EntityKind, userID uuid.UUID) (*models.Entity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.entities {
		if e.Kind == kind && e.OwnerUserID != nil && *e.OwnerUserID == userID {
			return &e, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (r *EntityStore) SetApproval(_ context.Context, kind models.EntityKind, id uuid.UUID, u moderation.ApprovalUpdate) (*models.Entity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entities[id]
	if !ok || e.Kind != kind {
		return nil, sentinel.ErrNotFound
	}
	if e.Approved == u.Approved {
		return &e, nil
	}
	e.Approved = u.Approved
	if u.Approved {
		at, by := u.At, u.By
		e.ApprovedAt, e.ApprovedBy = &at, &by
	}
	e.UpdatedAt = r.s.now()
	r.s.entities[id] = e
	return &e, nil
}

func (r *EntityStore) SetOwner(_ context.Context, kind models.EntityKind, id, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entities[id]
	if !ok || e.Kind != kind {
		return sentinel.ErrNotFound
	}
	if e.OwnerUserID != nil && *e.OwnerUserID != userID {
		return sentinel.ErrConflict
	}
	for otherID, other := range r.s.entities {
		if otherID != id && other.Kind == kind && other.OwnerUserID != nil && *other.OwnerUserID == userID {
			return sentinel.ErrConflict
		}
	}
	owner := userID
	e.OwnerUserID = &owner
	e.UpdatedAt = r.s.now()
	r.s.entities[id] = e
	return nil
}

func (r *EntityStore) CountAwaitingReview(ctx context.Context, kind models.EntityKind) (int, error) {
	list, err := r.ListAwaitingReview(ctx, kind)
	return len(list), err
}

func (r *EntityStore) ListAwaitingReview(_ context.Context, kind models.EntityKind) ([]*models.Entity, error) {
	list := r.filter(kind, func(e *models.Entity) bool { return e.AwaitingReview() })
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *EntityStore) ListApproved(_ context.Context, kind models.EntityKind, limit int) ([]*models.Entity, error) {
	list := r.filter(kind, func(e *models.Entity) bool { return e.Approved })
	return byName(list, limit), nil
}

func (r *EntityStore) SearchClaimable(_ context.Context, kind models.EntityKind, query string, limit int) ([]*models.Entity, error) {
	q := strings.ToLower(query)
	list := r.filter(kind, func(e *models.Entity) bool {
		return e.Approved && !e.Claimed() && strings.Contains(strings.ToLower(e.Name), q)
	})
	return byName(list, limit), nil
}

func (r *EntityStore) filter(kind models.EntityKind, keep func(*models.Entity) bool) []*models.Entity {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*models.Entity{}
	for _, e := range r.s.entities {
		if e.Kind == kind && keep(&e) {
			out = append(out, &e)
		}
	}
	return out
}

func byName(list []*models.Entity, limit int) []*models.Entity {
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

// ClaimStore implements moderation.ClaimStore.
type ClaimStore struct{ s *Store }

func (r *ClaimStore) Create(_ context.Context, c *models.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.claims {
		if existing.Pending() && existing.UserID == c.UserID &&
			existing.EntityKind == c.EntityKind && existing.EntityID == c.EntityID {
			return sentinel.ErrConflict
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now()
	}
	r.s.claims[c.ID] = *c
	return nil
}

func (r *ClaimStore) GetByID(_ context.Context, id uuid.UUID) (*models.Claim, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.claims[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (r *ClaimStore) Decide(_ context.Context, id uuid.UUID, status models.ClaimStatus, reason *string, at time.Time, by uuid.UUID) (*models.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.claims[id]
	if !ok || !c.Pending() {
		return nil, sentinel.ErrNotFound
	}
	c.Status = status
	c.RejectionReason = reason
	c.DecidedAt, c.DecidedBy = &at, &by
	r.s.claims[id] = c
	return &c, nil
}

func (r *ClaimStore) CountPending(ctx context.Context) (int, error) {
	list, err := r.ListPending(ctx)
	return len(list), err
}

func (r *ClaimStore) ListPending(_ context.Context) ([]*models.Claim, error) {
	list := r.filter(func(c *models.Claim) bool { return c.Pending() })
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *ClaimStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Claim, error) {
	list := r.filter(func(c *models.Claim) bool { return c.UserID == userID })
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (r *ClaimStore) filter(keep func(*models.Claim) bool) []*models.Claim {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*models.Claim{}
	for _, c := range r.s.claims {
		if keep(&c) {
			out = append(out, &c)
		}
	}
	return out
}

// EventStore implements moderation.EventStore.
type EventStore struct{ s *Store }

func (r *EventStore) Create(_ context.Context, e *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := r.s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	r.s.events[e.ID] = *e
	return nil
}

func (r *EventStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (r *EventStore) UpdateSchedule(_ context.Context, e *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	e.UpdatedAt = r.s.now()
	r.s.events[e.ID] = *e
	return nil
}

func (r *EventStore) CountInWindow(_ context.Context, userID uuid.UUID, from, to time.Time, exclude *uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, e := range r.s.events {
		if e.CreatedByUserID != userID || e.EventLimitExempt {
			continue
		}
		if exclude != nil && e.ID == *exclude {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *EventStore) Serialize(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error {
	l := r.s.userLock(userID)
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

var (
	_ moderation.EntityStore = (*EntityStore)(nil)
	_ moderation.ClaimStore  = (*ClaimStore)(nil)
	_ moderation.EventStore  = (*EventStore)(nil)
	_ moderation.UserStore   = (*UserStore)(nil)
	_ moderation.Transactor  = (*Store)(nil)
)
