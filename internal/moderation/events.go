package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
)

// EventInput holds the fields of an event to publish.
type EventInput struct {
	Title       string
	Description string
	Date        time.Time
}

func (in *EventInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if len(in.Title) < 1 || len(in.Title) > 255 {
		return invalid("title must be 1–255 characters")
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Date.IsZero() {
		return invalid("date is required")
	}
	in.Date = models.EventDay(in.Date)
	return nil
}

// PublishEvent admits and records an event for userID. The admission check and the
// insert run under the store's per-user lock, so two concurrent publications in the
// same window cannot both pass.
func (s *Service) PublishEvent(ctx context.Context, userID uuid.UUID, in EventInput) (*models.Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var ev *models.Event
	err := s.events.Serialize(ctx, userID, func(ctx context.Context) error {
		d, err := s.CanPublishEvent(ctx, userID, in.Date, nil)
		if err != nil {
			return err
		}
		if err := d.Err(); err != nil {
			return err
		}
		ev = &models.Event{
			CreatedByUserID: userID,
			Title:           in.Title,
			Description:     in.Description,
			Date:            in.Date,
		}
		if err := s.events.Create(ctx, ev); err != nil {
			return s.storeErr("create event", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.serializeErr(err)
	}
	s.logger.Info("event published",
		zap.String("event_id", ev.ID.String()), zap.String("user_id", userID.String()), zap.Time("date", ev.Date))
	return ev, nil
}

// RescheduleEvent edits an event owned by userID. A date change is re-admitted with the
// event itself excluded from the window; exempt events skip the policy.
func (s *Service) RescheduleEvent(ctx context.Context, userID, eventID uuid.UUID, in EventInput) (*models.Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var ev *models.Event
	err := s.events.Serialize(ctx, userID, func(ctx context.Context) error {
		var err error
		ev, err = s.events.GetByID(ctx, eventID)
		if err != nil {
			return s.storeErr("get event", err)
		}
		if ev.CreatedByUserID != userID {
			return ErrUnauthorized
		}
		if !ev.EventLimitExempt {
			d, err := s.CanPublishEvent(ctx, userID, in.Date, &ev.ID)
			if err != nil {
				return err
			}
			if err := d.Err(); err != nil {
				return err
			}
		}
		ev.Title = in.Title
		ev.Description = in.Description
		ev.Date = in.Date
		if err := s.events.UpdateSchedule(ctx, ev); err != nil {
			return s.storeErr("update event", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.serializeErr(err)
	}
	s.logger.Info("event rescheduled",
		zap.String("event_id", ev.ID.String()), zap.String("user_id", userID.String()), zap.Time("date", ev.Date))
	return ev, nil
}

// PublishExemptEvent records an administrator-created event. It bypasses admission
// and does not count toward anyone's window.
func (s *Service) PublishExemptEvent(ctx context.Context, actor Actor, in EventInput) (*models.Event, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	ev := &models.Event{
		CreatedByUserID:  actor.UserID,
		Title:            in.Title,
		Description:      in.Description,
		Date:             in.Date,
		EventLimitExempt: true,
	}
	if err := s.events.Create(ctx, ev); err != nil {
		return nil, s.storeErr("create event", err)
	}
	s.logger.Info("exempt event published",
		zap.String("event_id", ev.ID.String()), zap.String("admin_id", actor.UserID.String()), zap.Time("date", ev.Date))
	return ev, nil
}

// serializeErr keeps domain errors from inside a Serialize callback and maps lock or
// transaction failures to ErrStoreFailure.
func (s *Service) serializeErr(err error) error {
	if isDomainErr(err) {
		return err
	}
	s.logger.Error("store failure", zap.String("op", "serialize"), zap.Error(err))
	return fmt.Errorf("serialize: %w: %v", ErrStoreFailure, err)
}
