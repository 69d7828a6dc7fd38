package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/service"
	"github.com/vibast-solutions/ms-go-kiosk-payments/config"
)

var (
	workerMode  bool
	settleLimit int
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Poll the provider for stale CREATED payments",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ReconcileInterval },
			func(s *service.PaymentService, ctx context.Context) (logrus.Fields, error) {
				stats, err := s.RunReconcileBatch(ctx)
				return logrus.Fields{"checked": stats.Checked, "changed": stats.Changed, "failed": stats.Failed}, err
			},
		)
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Credit paid payments oldest first",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"settle",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SettleInterval },
			func(s *service.PaymentService, ctx context.Context) (logrus.Fields, error) {
				credited, err := s.RunSettleBatch(ctx, settleLimit)
				return logrus.Fields{"credited": len(credited)}, err
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(settleCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
	settleCmd.Flags().IntVar(&settleLimit, "limit", 1, "Maximum payments to credit per run (0 uses PAYMENTS_JOB_BATCH_SIZE)")
}

type jobFunc func(s *service.PaymentService, ctx context.Context) (logrus.Fields, error)

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn jobFunc,
) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), paymentService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() (logrus.Fields, error) { return fn(paymentService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	paymentService *service.PaymentService,
	fn jobFunc,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() (logrus.Fields, error) { return fn(paymentService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() (logrus.Fields, error) { return fn(paymentService, ctx) })
		}
	}
}

func runJob(name string, fn func() (logrus.Fields, error)) {
	start := time.Now()
	fields, err := fn()
	latency := time.Since(start)

	entry := logrus.WithFields(fields).WithField("job", name).WithField("latency", latency.String())
	if err != nil {
		entry.WithError(err).Error("job_failed")
		return
	}
	entry.Info("job_completed")
}
