package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/queue"
)

// Jobs is the queue side the processor consumes.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailLogs records every delivery attempt.
type EmailLogs interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// NotificationProcessor processes notification jobs: compose the email, hand it to the
// sender, record the outcome in email_logs.
type NotificationProcessor struct {
	jobs    Jobs
	logs    EmailLogs
	sender  Sender
	from    string
	logger  *zap.Logger
	now     func() time.Time
	backoff time.Duration
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(jobs Jobs, logs EmailLogs, sender Sender, from string, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{
		jobs:    jobs,
		logs:    logs,
		sender:  sender,
		from:    from,
		logger:  logger,
		now:     time.Now,
		backoff: queue.RetryBackoff,
	}
}

// Process executes one notification job. A returned error means the job should be retried.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeNotification {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		p.logger.Warn("notification without recipient dropped", zap.String("job_id", job.ID), zap.String("type", payload.Type))
		return nil
	}

	msg := Compose(payload)
	msg.From = p.from

	entry := &models.EmailLog{
		EmailType:      payload.Type,
		RecipientEmail: payload.RecipientEmail,
		Subject:        msg.Subject,
		EntityID:       payload.EntityID,
		ClaimID:        payload.ClaimID,
		Status:         models.EmailLogStatusPending,
	}
	if payload.EntityKind != "" {
		kind := models.EntityKind(payload.EntityKind)
		entry.EntityKind = &kind
	}
	if err := p.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	if err := p.sender.Send(ctx, msg); err != nil {
		if mErr := p.logs.MarkFailed(ctx, entry.ID, err.Error()); mErr != nil {
			p.logger.Error("mark email failed", zap.Error(mErr), zap.String("email_log_id", entry.ID.String()))
		}
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkSent(ctx, entry.ID, p.now()); err != nil {
		// The email is out; a retry would send it twice.
		p.logger.Error("mark email sent", zap.Error(err), zap.String("email_log_id", entry.ID.String()))
	}

	p.logger.Info("notification delivered",
		zap.String("job_id", job.ID), zap.String("type", payload.Type), zap.String("email_log_id", entry.ID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *NotificationProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Compose renders the subject and body for a notification payload.
func Compose(n queue.NotificationPayload) Message {
	msg := Message{To: n.RecipientEmail, ReplyTo: n.ReplyTo}
	kind := kindLabel(n.EntityKind)
	switch n.Type {
	case models.EmailTypeEntityRejected:
		msg.Subject = fmt.Sprintf("Your %s profile %q was not approved", kind, n.Name)
		msg.Body = fmt.Sprintf("Hello,\n\nThe %s profile %q was reviewed and not approved.\n\nReason: %s\n",
			kind, n.Name, reasonOr(n.Reason, "it does not meet the directory guidelines"))
	case models.EmailTypeClaimRejected:
		msg.Subject = fmt.Sprintf("Your claim for %q was rejected", n.Name)
		msg.Body = fmt.Sprintf("Hello,\n\nYour request to manage the %s profile %q was rejected.\n\nReason: %s\n",
			kind, n.Name, reasonOr(n.Reason, "we could not verify that you operate this profile"))
	case models.EmailTypeClaimApproved:
		msg.Subject = fmt.Sprintf("Your claim for %q was approved", n.Name)
		msg.Body = fmt.Sprintf("Hello,\n\nYou now manage the %s profile %q.\n", kind, n.Name)
	case models.EmailTypeContactMessage:
		subject, body, _ := strings.Cut(n.Body, "\n\n")
		msg.Subject = "[Contact] " + subject
		msg.Body = fmt.Sprintf("From: %s <%s>\n\n%s\n", n.Name, n.ReplyTo, body)
	default:
		msg.Subject = "Directory notification"
		msg.Body = n.Body
	}
	return msg
}

func reasonOr(reason *string, fallback string) string {
	if reason == nil || strings.TrimSpace(*reason) == "" {
		return fallback
	}
	return *reason
}

func kindLabel(kind string) string {
	if kind == "" {
		return "directory"
	}
	return kind
}
