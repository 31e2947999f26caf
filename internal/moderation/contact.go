package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
)

const maxContactBody = 5000

// ContactMessage is a member's message to the platform inbox.
type ContactMessage struct {
	Subject string
	Body    string
}

// SendContactMessage admits userID to the contact channel and hands the message to the
// notifier addressed to the platform inbox, with the sender as reply-to. Unlike
// moderation notices, the message is the whole operation, so an enqueue failure is
// returned to the caller.
func (s *Service) SendContactMessage(ctx context.Context, userID uuid.UUID, msg ContactMessage) error {
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.Subject == "" || len(msg.Subject) > 255 {
		return invalid("subject must be 1–255 characters")
	}
	if msg.Body == "" || len(msg.Body) > maxContactBody {
		return invalid(fmt.Sprintf("body must be 1–%d characters", maxContactBody))
	}
	if s.contactInbox == "" {
		s.logger.Error("contact inbox not configured")
		return fmt.Errorf("contact inbox: %w", ErrStoreFailure)
	}

	d, err := s.CanAccessContact(ctx, userID)
	if err != nil {
		return err
	}
	if err := d.Err(); err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return s.storeErr("get user", err)
	}

	n := Notification{
		Type:           models.EmailTypeContactMessage,
		RecipientEmail: s.contactInbox,
		Name:           d.DisplayName,
		ReplyTo:        u.Email,
		Body:           msg.Subject + "\n\n" + msg.Body,
		OccurredAt:     s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("contact message enqueue failed", zap.String("user_id", userID.String()), zap.Error(err))
		return fmt.Errorf("enqueue contact message: %w: %v", ErrStoreFailure, err)
	}
	s.logger.Info("contact message sent", zap.String("user_id", userID.String()), zap.String("role", string(d.Role)))
	return nil
}
