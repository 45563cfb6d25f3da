// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"subscription_notifier/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	adminService *app.AdminService,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if adminService.IsAdmin(senderID) {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, %s! The subscription notifier is running. Use /help for the list of commands.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("This bot is reserved for the subscription notifier administrator.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if !adminService.IsAdmin(senderID) {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("No commands are available to you.")
		}

		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/run_notifications`\n - Run today's expiry check now.\n\n")
		helpText.WriteString("`/recent_notifications [N]`\n - Show the last N sent notifications (default 20, max 100).\n\n")
		helpText.WriteString("`/notification_stats`\n - Notifications per stage over the last 30 days.\n\n")
		helpText.WriteString("`/renew <tenant_id> <offer_id> [payment_method]`\n - Add a subscription cycle for a tenant.\n\n")
		helpText.WriteString("`/cycles <tenant_id>`\n - List a tenant's subscription cycles.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}
