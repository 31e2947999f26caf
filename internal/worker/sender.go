package worker

import (
	"context"

	"go.uber.org/zap"
)

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers rendered emails.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes emails to the log instead of delivering them. It is the default
// until an SMTP or provider sender is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that logs each message.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.Int("body_len", len(msg.Body)),
	)
	return nil
}
