package testutil

import (
	"context"
	"errors"
	"sync"

	"subscription_notifier/internal/domain/mail"
)

var ErrDeliveryFailed = errors.New("simulated delivery failure")

// MailSender records sent messages. Recipients listed in FailFor are
// rejected with ErrDeliveryFailed.
type MailSender struct {
	mu      sync.Mutex
	sent    []mail.Message
	FailFor map[string]bool
}

func NewMailSender() *MailSender {
	return &MailSender{FailFor: make(map[string]bool)}
}

func (s *MailSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFor[msg.To] {
		return ErrDeliveryFailed
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *MailSender) Sent() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.sent...)
}

func (s *MailSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

var _ mail.Sender = (*MailSender)(nil)
