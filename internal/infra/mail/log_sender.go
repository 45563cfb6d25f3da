package mail

import (
	"context"

	"subscription_notifier/internal/domain/mail"

	"github.com/sirupsen/logrus"
)

// LogSender only logs messages. Used when no mail provider is configured.
type LogSender struct {
	logger *logrus.Entry
}

func NewLogSender(logger *logrus.Entry) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg mail.Message) error {
	s.logger.WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"body_length": len(msg.HTML),
	}).Info("Dry-run: email not sent (no mail provider configured)")
	return nil
}

var _ mail.Sender = (*LogSender)(nil)
