package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/ward-census/internal/auditlog"
	auditpg "github.com/frahmantamala/ward-census/internal/auditlog/postgres"
	"github.com/frahmantamala/ward-census/internal/draft"
	draftpg "github.com/frahmantamala/ward-census/internal/draft/postgres"
	"github.com/frahmantamala/ward-census/internal/maintenance"
	"github.com/frahmantamala/ward-census/internal/session"
	sessionpg "github.com/frahmantamala/ward-census/internal/session/postgres"
	"github.com/frahmantamala/ward-census/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers outside the HTTP server process.`,
}

var maintenanceWorkerCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run the maintenance worker pool",
	Long:  `Purge expired sessions, autosaved drafts and old system logs on their configured intervals.`,
	Run: func(cmd *cobra.Command, args []string) {
		startMaintenanceWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	runOnce      bool
)

func startMaintenanceWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.Setup(logger.Options{
		Env:    os.Getenv("APP_ENV"),
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
	})

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gdb, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init gorm: %v\n", err)
		os.Exit(1)
	}

	logRepo := auditpg.NewLogRepository(db)
	pool := maintenance.NewPool(maintenance.PoolConfig{
		MaxWorkers:   getIntFlag(maxWorkers, config.Worker.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Worker.JobQueueSize),
	}, lg)
	scheduler := maintenance.NewScheduler(pool, lg,
		maintenance.SessionCleanupTask(
			session.NewManager(sessionpg.NewSessionRepository(gdb), config.Session.IdleTimeout, lg),
			config.Session.CleanupInterval),
		maintenance.DraftPurgeTask(
			draft.NewService(draftpg.NewDraftRepository(gdb), config.Draft.TTL, lg),
			config.Worker.DraftPurgeInterval),
		maintenance.LogRetentionTask(
			auditlog.NewService(logRepo, auditlog.NewRecorder(logRepo, lg), lg),
			config.Logs.Retention, config.Worker.LogPurgeInterval),
	)

	lg.Info("starting maintenance worker",
		"max_workers", config.Worker.MaxWorkers,
		"job_queue_size", config.Worker.JobQueueSize,
		"once", runOnce)

	if runOnce {
		if err := scheduler.RunNow(context.Background()); err != nil {
			lg.Error("maintenance run failed", "error", err)
			os.Exit(1)
		}
		lg.Info("maintenance run complete")
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("maintenance worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	lg.Info("received signal, shutting down maintenance worker", "signal", sig)
	stop()
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		lg.Info("maintenance pool shutdown complete")
	case <-shutdownCtx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	maintenanceWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	maintenanceWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	maintenanceWorkerCmd.Flags().BoolVar(&runOnce, "once", false, "Run every job once and exit")

	workerCmd.AddCommand(maintenanceWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
