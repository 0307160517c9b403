package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of delivering them. Used with
// EMAIL_PROVIDER=log during local development.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("mail")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email not delivered (log provider)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	s.log.Debug("email body", zap.String("html", msg.HTML))
	return nil
}
