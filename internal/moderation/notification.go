package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
)

// Notification is the intent handed to the email collaborator. A nil Reason means
// the collaborator picks its default copy.
type Notification struct {
	Type           string
	RecipientEmail string
	Name           string
	Reason         *string
	EntityKind     models.EntityKind
	EntityID       uuid.UUID
	ClaimID        *uuid.UUID
	ReplyTo        string
	Body           string
	OccurredAt     time.Time
}

// normalizeReason trims reason and maps blank text to nil.
func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	r := strings.TrimSpace(*reason)
	if r == "" {
		return nil
	}
	return &r
}

// notify hands n to the notifier. Failures are logged and swallowed: the state
// change has already been committed and is the source of truth.
func (s *Service) notify(ctx context.Context, n Notification) {
	if n.RecipientEmail == "" {
		s.logger.Warn("notification skipped: no recipient",
			zap.String("type", n.Type), zap.String("entity_kind", string(n.EntityKind)), zap.String("entity_id", n.EntityID.String()))
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("notification enqueue failed",
			zap.String("type", n.Type), zap.String("recipient", n.RecipientEmail), zap.Error(err))
	}
}

func (s *Service) queueChanged(ctx context.Context) {
	if s.observer != nil {
		s.observer.QueueChanged(ctx)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) error { return nil }

type directTx struct{}

func (directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
