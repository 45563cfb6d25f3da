package mail

import (
	"context"
	"fmt"

	"subscription_notifier/internal/domain/mail"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger *logrus.Entry
}

func NewResendSender(apiKey, from string, logger *logrus.Entry) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg mail.Message) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: failed to send email to %s: %w", msg.To, err)
	}
	s.logger.WithFields(logrus.Fields{
		"message_id": sent.Id,
		"to":         msg.To,
		"subject":    msg.Subject,
	}).Debug("Email handed to Resend")
	return nil
}

var _ mail.Sender = (*ResendSender)(nil)
