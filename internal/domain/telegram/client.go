package telegram

// Client sends plain-text messages to a Telegram chat.
// Used to report batch outcomes to the administrator.
type Client interface {
	SendMessage(recipientChatID int64, text string) error
}
