package mail

import "context"

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender hands a message to the outbound mail provider.
// This keeps the application logic independent of the provider SDK.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
