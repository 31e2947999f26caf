// Package notify turns moderation notification intents into queued email jobs.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/queue"
)

// Enqueuer accepts notification jobs.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload) error
}

// QueueNotifier implements moderation.Notifier on top of the Redis job queue.
type QueueNotifier struct {
	queue Enqueuer
}

// NewQueueNotifier creates a notifier that enqueues onto q.
func NewQueueNotifier(q Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

var _ moderation.Notifier = (*QueueNotifier)(nil)

// Notify enqueues n. Delivery happens in the worker process.
func (n *QueueNotifier) Notify(ctx context.Context, note moderation.Notification) error {
	return n.queue.EnqueueNotification(ctx, Payload(note))
}

// Payload converts a notification intent to its wire form.
func Payload(note moderation.Notification) queue.NotificationPayload {
	p := queue.NotificationPayload{
		Type:           note.Type,
		RecipientEmail: note.RecipientEmail,
		Name:           note.Name,
		Reason:         note.Reason,
		EntityKind:     string(note.EntityKind),
		ClaimID:        note.ClaimID,
		ReplyTo:        note.ReplyTo,
		Body:           note.Body,
		OccurredAt:     note.OccurredAt,
	}
	if note.EntityID != uuid.Nil {
		id := note.EntityID
		p.EntityID = &id
	}
	return p
}
