package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/infra/config"
	idb "subscription_notifier/internal/infra/database"
	"subscription_notifier/internal/infra/logger"
	"subscription_notifier/internal/infra/mail"
	"subscription_notifier/internal/infra/scheduler"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// runtime holds the wired services for one command invocation.
type runtime struct {
	cfg       *config.AppConfig
	db        *idb.DB
	location  *time.Location
	scheduler *scheduler.NotificationScheduler
	renewals  *app.RenewalService
	audit     *app.AuditService
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

func setup(ctx context.Context, errOut io.Writer) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}
	log := logger.NewWithOutput(cfg, errOut)

	location, err := calendar.LoadZone(cfg.BusinessTimezone)
	if err != nil {
		return nil, err
	}

	db, err := idb.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	tenantRepo := idb.NewTenantRepository(db)
	notificationRepo := idb.NewNotificationRepository(db)

	renderer, err := app.NewRenderer(cfg.DateDisplayLayout)
	if err != nil {
		db.Close()
		return nil, err
	}

	var dispatch *app.NotificationService
	if cfg.ResendAPIKey != "" {
		dispatch = app.NewNotificationService(tenantRepo, notificationRepo,
			mail.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom, logger.Component(log, "resend")),
			renderer, location, cfg.NotifyWorkers, logger.Component(log, "dispatcher"))
	} else {
		dispatch = app.NewNotificationService(tenantRepo, notificationRepo,
			mail.NewLogSender(logger.Component(log, "mail_dry_run")),
			renderer, location, cfg.NotifyWorkers, logger.Component(log, "dispatcher"))
	}

	return &runtime{
		cfg:       cfg,
		db:        db,
		location:  location,
		scheduler: scheduler.NewNotificationScheduler(dispatch, location, cfg.CronSpecExpiryCheck, logger.Component(log, "scheduler")),
		renewals: app.NewRenewalService(tenantRepo, idb.NewCycleRepository(db), idb.NewOfferRepository(db),
			idb.NewUnitOfWork(db), location, logger.Component(log, "renewal")),
		audit: app.NewAuditService(notificationRepo),
	}, nil
}

// withRuntime wires the services before running fn and closes them after.
func withRuntime(fn func(cmd *cobra.Command, rt *runtime) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		rt, err := setup(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, rt)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cyclectl",
		Short:         "Operate subscription cycles and expiry notifications",
		Long:          `cyclectl runs expiry notification batches, inspects the notification ledger and manages subscription cycles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newMigrateCmd(),
		newRunCmd(),
		newRecentCmd(),
		newStatsCmd(),
		newRenewCmd(),
		newDeleteCycleCmd(),
	)
	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime) error {
			// setup already migrated
			fmt.Fprintf(cmd.OutOrStdout(), "Schema applied (%s)\n", rt.db.Driver)
			return nil
		}),
	}
}

func newRunCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the expiry notification batch now",
		Long:  `Run the expiry notification batch for today in the business timezone, or for --date to backfill a missed day.`,
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime) error {
			var (
				summary app.BatchSummary
				err     error
			)
			if date != "" {
				day, perr := calendar.ParseDate(date)
				if perr != nil {
					return fmt.Errorf("invalid --date: %w", perr)
				}
				summary, err = rt.scheduler.RunFor(cmd.Context(), day)
			} else {
				summary, err = rt.scheduler.RunNow(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expiry notification run finished: %s\n", summary)
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "business day to run for, YYYY-MM-DD (default today)")
	return cmd
}

func newRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently sent notifications",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime) error {
			entries, err := rt.audit.RecentNotifications(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SENT AT\tTENANT\tSTAGE\tCYCLE END\tRECIPIENT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s (%d)\t%s\t%s\t%s\n",
					e.SentAt.In(rt.location).Format("2006-01-02 15:04"),
					e.TenantName, e.TenantID, e.Stage,
					e.CycleEndDate.Format(rt.cfg.DateDisplayLayout), e.Recipient)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", app.DefaultRecentLimit, fmt.Sprintf("number of entries (max %d)", app.MaxRecentLimit))
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count notifications per stage over the last 30 days",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime) error {
			stats, err := rt.audit.StageStats(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tSENT")
			for _, st := range stats {
				fmt.Fprintf(w, "%s\t%d\n", st.Stage, st.Count)
			}
			return w.Flush()
		}),
	}
}

func newRenewCmd() *cobra.Command {
	var (
		tenantID int64
		offerID  int64
		method   string
		amount   string
		meta     []string
	)
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Append a subscription cycle for a tenant",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime) error {
			req := app.RenewRequest{TenantID: tenantID, OfferID: offerID, PaymentMethod: method}
			if amount != "" {
				v, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid --amount: %w", err)
				}
				req.PaymentAmount = v
			}
			if len(meta) > 0 {
				req.Metadata = make(map[string]string, len(meta))
				for _, kv := range meta {
					k, v, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid --meta %q, expected key=value", kv)
					}
					req.Metadata[k] = v
				}
			}

			cycle, err := rt.renewals.Renew(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cycle %d: %s, %s to %s (%d days), paid %s\n",
				cycle.ID, cycle.OfferName,
				cycle.StartDate.Format(rt.cfg.DateDisplayLayout), cycle.EndDate.Format(rt.cfg.DateDisplayLayout),
				cycle.DaysSubscribed(), cycle.PaymentAmount.StringFixed(2))
			return nil
		}),
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	cmd.Flags().Int64Var(&offerID, "offer", 0, "offer id")
	cmd.Flags().StringVar(&method, "method", "manual", "payment method")
	cmd.Flags().StringVar(&amount, "amount", "", "amount paid (default: offer price)")
	cmd.Flags().StringSliceVar(&meta, "meta", nil, "metadata as key=value, repeatable")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("offer")
	return cmd
}

func newDeleteCycleCmd() *cobra.Command {
	var cycleID int64
	cmd := &cobra.Command{
		Use:   "delete-cycle",
		Short: "Delete a subscription cycle and recompute the tenant's bounds",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime) error {
			if err := rt.renewals.DeleteCycle(cmd.Context(), cycleID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cycle %d deleted\n", cycleID)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&cycleID, "id", 0, "cycle id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
