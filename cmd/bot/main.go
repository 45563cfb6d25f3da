package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/domain/calendar"
	domainMail "subscription_notifier/internal/domain/mail"
	"subscription_notifier/internal/infra/config"
	idb "subscription_notifier/internal/infra/database"
	"subscription_notifier/internal/infra/logger"
	"subscription_notifier/internal/infra/mail"
	"subscription_notifier/internal/infra/scheduler"
	"subscription_notifier/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}

	log := logger.New(cfg)
	mainLogger := logger.Component(log, "main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"db_driver":   cfg.DatabaseDriver,
		"timezone":    cfg.BusinessTimezone,
	}).Info("Subscription notifier starting...")

	location, err := calendar.LoadZone(cfg.BusinessTimezone)
	if err != nil {
		mainLogger.WithError(err).Fatal("Invalid business timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		mainLogger.WithError(err).Fatal("Could not apply database schema")
	}
	mainLogger.Info("Database connection established successfully")

	// Initialize Repositories
	tenantRepo := idb.NewTenantRepository(db)
	cycleRepo := idb.NewCycleRepository(db)
	offerRepo := idb.NewOfferRepository(db)
	notificationRepo := idb.NewNotificationRepository(db)

	var sender domainMail.Sender
	if cfg.ResendAPIKey != "" {
		sender = mail.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom, logger.Component(log, "resend"))
	} else {
		mainLogger.Warn("RESEND_API_KEY is not set, notifications will only be logged")
		sender = mail.NewLogSender(logger.Component(log, "mail_dry_run"))
	}

	renderer, err := app.NewRenderer(cfg.DateDisplayLayout)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not parse notification templates")
	}

	notificationService := app.NewNotificationService(
		tenantRepo, notificationRepo, sender, renderer, location, cfg.NotifyWorkers,
		logger.Component(log, "dispatcher"),
	)
	renewalService := app.NewRenewalService(
		tenantRepo, cycleRepo, offerRepo, idb.NewUnitOfWork(db), location,
		logger.Component(log, "renewal"),
	)
	auditService := app.NewAuditService(notificationRepo)

	notifScheduler := scheduler.NewNotificationScheduler(
		notificationService,
		location,
		cfg.CronSpecExpiryCheck,
		logger.Component(log, "scheduler"),
	)

	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := logger.Component(log, "telegram")
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				entry.Error("Telegram handler error")
			},
		}
		bot, err = telebot.NewBot(pref)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}

		notifScheduler.WithAdminNotifier(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID)

		adminService := app.NewAdminService(notifScheduler, auditService, renewalService, cfg.AdminTelegramID)
		telegram.RegisterBotCommands(bot, adminService, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.DateDisplayLayout, botLogger)
		mainLogger.Info("Admin command handlers registered")
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN is not set, admin bot disabled")
	}

	if err := notifScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start notification scheduler")
	}

	if bot != nil {
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}
	mainLogger.Info("Application setup complete")

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	notifScheduler.Stop()
	mainLogger.Info("Application shut down gracefully")
}
