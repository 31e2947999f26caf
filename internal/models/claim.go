package models

import (
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

// ClaimDecision is an administrator's verdict on a pending claim.
type ClaimDecision string

const (
	ClaimApprove ClaimDecision = "approve"
	ClaimReject  ClaimDecision = "reject"
)

// Claim is a user's request to be recognized as the operator of an unowned entity.
type Claim struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	EntityKind      EntityKind  `json:"entity_kind"`
	EntityID        uuid.UUID   `json:"entity_id"`
	Message         string      `json:"message,omitempty"`
	Status          ClaimStatus `json:"status"`
	RejectionReason *string     `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time  `json:"decided_at,omitempty"`
	DecidedBy       *uuid.UUID  `json:"decided_by,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Pending reports whether the claim still awaits an administrator decision.
func (c *Claim) Pending() bool { return c.Status == ClaimStatusPending }
