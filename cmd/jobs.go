package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/repository"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/service"
	"github.com/vibast-solutions/ms-go-api-subscriptions/config"
)

var reconcileWorker bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report subscriptions left diverged by unfinished gateway operations",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile",
			reconcileWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ReconcileInterval },
			func(s *service.ReconciliationService, ctx context.Context) error {
				return s.RunReconciliationBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().BoolVar(&reconcileWorker, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.ReconciliationService, ctx context.Context) error,
) {
	cfg, reconciliationService, cleanup := mustCreateReconciliationService()
	defer cleanup()

	if worker {
		runWorker(name, intervalResolver(cfg), reconciliationService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(reconciliationService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	reconciliationService *service.ReconciliationService,
	fn func(s *service.ReconciliationService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(reconciliationService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(reconciliationService, ctx) })
		}
	}
}

func mustCreateReconciliationService() (*config.Config, *service.ReconciliationService, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	divergenceNotifier := newNotifier(cfg)

	reconciliationService := service.NewReconciliationService(
		repository.NewReconciliationRepository(db),
		repository.NewSubscriptionRepository(db),
		divergenceNotifier,
		cfg.Jobs,
	)

	cleanup := func() {
		closeNotifier(divergenceNotifier)
		closeDatabase(db)
	}

	return cfg, reconciliationService, cleanup
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
