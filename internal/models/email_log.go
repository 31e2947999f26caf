package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for moderation notifications.
const (
	EmailTypeEntityRejected = "entity_rejected"
	EmailTypeClaimRejected  = "claim_rejected"
	EmailTypeClaimApproved  = "claim_approved"
	EmailTypeContactMessage = "contact_message"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records notification emails handed to delivery.
type EmailLog struct {
	ID             uuid.UUID   `json:"id"`
	EmailType      string      `json:"email_type"`
	RecipientEmail string      `json:"recipient_email"`
	Subject        string      `json:"subject,omitempty"`
	EntityKind     *EntityKind `json:"entity_kind,omitempty"`
	EntityID       *uuid.UUID  `json:"entity_id,omitempty"`
	ClaimID        *uuid.UUID  `json:"claim_id,omitempty"`
	Status         string      `json:"status"`
	SentAt         *time.Time  `json:"sent_at,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
