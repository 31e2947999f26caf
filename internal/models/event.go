package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the publication record of a scene event. Only the fields that matter for
// admission control and listing are kept here.
type Event struct {
	ID               uuid.UUID `json:"id"`
	CreatedByUserID  uuid.UUID `json:"created_by_user_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Date             time.Time `json:"date"`
	EventLimitExempt bool      `json:"event_limit_exempt"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EventDay truncates t to its UTC calendar day.
func EventDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
