package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind discriminates the six moderatable profile types.
type EntityKind string

const (
	KindAct         EntityKind = "act"
	KindVenue       EntityKind = "venue"
	KindFestival    EntityKind = "festival"
	KindPromoter    EntityKind = "promoter"
	KindOrganizer   EntityKind = "organizer"
	KindAssociation EntityKind = "association"
)

// EntityKinds lists every kind in display order.
var EntityKinds = []EntityKind{KindAct, KindVenue, KindFestival, KindPromoter, KindOrganizer, KindAssociation}

// Valid reports whether k is one of the six known kinds.
func (k EntityKind) Valid() bool {
	for _, v := range EntityKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ParseEntityKind parses a path segment such as "venue" into a kind.
func ParseEntityKind(s string) (EntityKind, bool) {
	k := EntityKind(s)
	return k, k.Valid()
}

// Entity is the shape shared by acts, venues, festivals, promoters, organizers and associations.
type Entity struct {
	ID                uuid.UUID  `json:"id"`
	Kind              EntityKind `json:"kind"`
	Slug              string     `json:"slug"`
	Name              string     `json:"name"`
	ContactEmail      string     `json:"contact_email,omitempty"`
	City              string     `json:"city,omitempty"`
	Description       string     `json:"description,omitempty"`
	Approved          bool       `json:"approved"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	ApprovedBy        *uuid.UUID `json:"approved_by,omitempty"`
	OwnerUserID       *uuid.UUID `json:"owner_user_id,omitempty"`
	CreatedByPlatform bool       `json:"created_by_platform"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Claimed reports whether the entity is bound to a user account.
func (e *Entity) Claimed() bool { return e.OwnerUserID != nil }

// AwaitingReview reports whether the entity is a self-registration waiting for moderation.
func (e *Entity) AwaitingReview() bool { return !e.Approved && e.OwnerUserID != nil }
