package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/domain/subscription"
	idb "subscription_notifier/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Error: you are not allowed to use this command."

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, dateLayout string, baseLogger *logrus.Entry) {
	b.Handle("/run_notifications", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/run_notifications",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		confirmation, err := adminService.RunNotifications(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			handlerLogger.WithError(err).Error("Manual notification run failed")
			return c.Send("The notification run failed. See the service logs for details.")
		}

		handlerLogger.Info(confirmation)
		return c.Send(confirmation)
	})

	b.Handle("/recent_notifications", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/recent_notifications",
			"sender_id": c.Sender().ID,
		})

		limit := app.DefaultRecentLimit
		if args := c.Args(); len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return c.Send("Invalid format. Use: /recent_notifications [N]")
			}
			limit = n
		}

		entries, err := adminService.RecentNotifications(ctx, c.Sender().ID, limit)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			handlerLogger.WithError(err).Error("Failed to list recent notifications")
			return c.Send(fmt.Sprintf("Failed to list recent notifications: %s", err.Error()))
		}
		if len(entries) == 0 {
			return c.Send("No notifications have been sent yet.")
		}

		var response strings.Builder
		response.WriteString(fmt.Sprintf("--- Last %d notifications ---\n", len(entries)))
		for _, e := range entries {
			response.WriteString(fmt.Sprintf("%s | %s (ID: %d) | %s | cycle end %s\n",
				e.SentAt.Format("2006-01-02 15:04"),
				e.TenantName,
				e.TenantID,
				e.Stage,
				e.CycleEndDate.Format(dateLayout)))
		}
		return c.Send(response.String())
	})

	b.Handle("/notification_stats", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/notification_stats",
			"sender_id": c.Sender().ID,
		})

		stats, err := adminService.NotificationStats(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			handlerLogger.WithError(err).Error("Failed to compute notification stats")
			return c.Send(fmt.Sprintf("Failed to compute notification stats: %s", err.Error()))
		}

		var response strings.Builder
		response.WriteString("--- Notifications, last 30 days ---\n")
		for _, st := range stats {
			response.WriteString(fmt.Sprintf("%s: %d\n", st.Stage, st.Count))
		}
		return c.Send(response.String())
	})

	b.Handle("/renew", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/renew",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		// Expected format: /renew <tenant_id> <offer_id> [payment_method]
		args := c.Args()
		if len(args) < 2 || len(args) > 3 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /renew <tenant_id> <offer_id> [payment_method]")
		}
		tenantID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: tenant_id must be a number.")
		}
		offerID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return c.Send("Error: offer_id must be a number.")
		}
		method := "manual"
		if len(args) == 3 {
			method = args[2]
		}

		handlerLogger = handlerLogger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"offer_id":  offerID,
		})

		cycle, err := adminService.Renew(ctx, c.Sender().ID, app.RenewRequest{
			TenantID:      tenantID,
			OfferID:       offerID,
			PaymentMethod: method,
		})
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(msgUnauthorized)
			case errors.Is(err, idb.ErrOfferNotFound):
				logWithError.Warn("Offer not found")
				return c.Send(fmt.Sprintf("Offer %d not found.", offerID))
			case errors.Is(err, subscription.ErrOfferNoLongerSold):
				logWithError.Warn("Offer no longer sold")
				return c.Send(fmt.Sprintf("Offer %d is no longer sold.", offerID))
			case errors.Is(err, idb.ErrTenantNotFound):
				logWithError.Warn("Tenant not found")
				return c.Send(fmt.Sprintf("Tenant %d not found.", tenantID))
			default:
				logWithError.Error("Failed to renew subscription")
				return c.Send(fmt.Sprintf("Renewal failed: %s", err.Error()))
			}
		}

		return c.Send(fmt.Sprintf("Tenant %d renewed with %s: %s to %s (cycle ID: %d).",
			tenantID, cycle.OfferName,
			cycle.StartDate.Format(dateLayout), cycle.EndDate.Format(dateLayout), cycle.ID))
	})

	b.Handle("/cycles", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/cycles",
			"sender_id": c.Sender().ID,
		})

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid format. Use: /cycles <tenant_id>")
		}
		tenantID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: tenant_id must be a number.")
		}

		cycles, err := adminService.ListCycles(ctx, c.Sender().ID, tenantID)
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			handlerLogger.WithError(err).Error("Failed to list cycles")
			return c.Send(fmt.Sprintf("Failed to list cycles: %s", err.Error()))
		}
		if len(cycles) == 0 {
			return c.Send(fmt.Sprintf("Tenant %d has no subscription cycles.", tenantID))
		}

		var response strings.Builder
		response.WriteString(fmt.Sprintf("--- Cycles of tenant %d ---\n", tenantID))
		for _, cy := range cycles {
			response.WriteString(fmt.Sprintf("ID: %d, %s, %s to %s (%d days), paid %s by %s\n",
				cy.ID,
				cy.OfferName,
				cy.StartDate.Format(dateLayout),
				cy.EndDate.Format(dateLayout),
				cy.DaysSubscribed(),
				cy.PaymentAmount.StringFixed(2),
				cy.PaymentMethod))
		}
		return c.Send(response.String())
	})
}
