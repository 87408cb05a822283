package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	workerMode     bool
	eventTagPrefix string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile pending donations against the payment gateway",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, donationService, cleanup := mustCreateDonationService()
		defer cleanup()

		run := func() {
			runJob("sync_pending", func() error {
				report, err := donationService.SyncPendingDonations(context.Background(), eventTagPrefix)
				if err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{
					"job":           "sync_pending",
					"total":         report.Total,
					"updated":       report.Updated,
					"still_pending": report.StillPending,
					"failed":        report.Failed,
					"errors":        len(report.Errors),
				}).Info("sync_report")
				return nil
			})
		}

		if !workerMode {
			run()
			return
		}

		runWorker(cfg.Jobs.SyncSchedule, run)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&workerMode, "worker", false, "Run continuously on the configured cron schedule")
	syncCmd.Flags().StringVar(&eventTagPrefix, "event-tag-prefix", "", "Only reconcile donations whose event tag starts with this prefix")
}

func runWorker(schedule string, run func()) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, run); err != nil {
		logrus.WithError(err).WithField("schedule", schedule).Fatal("invalid worker schedule")
	}

	run()
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Worker shutdown requested")

	<-c.Stop().Done()
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
