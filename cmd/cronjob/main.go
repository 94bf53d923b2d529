package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"pathpay-backend/internal/chain"
	"pathpay-backend/internal/config"
	"pathpay-backend/internal/jobs"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository/postgres"
	"pathpay-backend/internal/scheduler"
	"pathpay-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'sweep-expired-escrows', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting PathPay Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize chain client
	var chainClient chain.Client
	if cfg.Chain.Mock {
		logger.Warn("Using mock chain client; settlements will not reach a real chain")
		chainClient = chain.NewMockClient()
	} else {
		chainClient = chain.NewHTTPClient(cfg.Chain.GatewayURL, cfg.Chain.APIKey, time.Duration(cfg.Chain.TimeoutSeconds)*time.Second)
	}

	// Initialize Services
	var notifier service.Notifier
	if cfg.Alerts.WebhookURL != "" {
		notifier = service.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	} else {
		notifier = service.NewNoopNotifier()
	}

	escrowService := service.NewEscrowService(store.LedgerRepository, store.EscrowRepository, cfg.Escrow, notifier)
	alertService := service.NewAlertService(cfg.Alerts)
	reconcilerService := service.NewReconcilerService(store.SettlementRepository, store.WalletRepository, chainClient, alertService, cfg.Chain)

	jobServices := &jobs.Services{
		Escrow:     escrowService,
		Reconciler: reconcilerService,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(db, store, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "sweep-expired-escrows":
		jobRunner.SweepExpiredEscrows()
	case "submit-settlements":
		jobRunner.SubmitSettlements()
	case "poll-receipts":
		jobRunner.PollReceipts()
	case "purge-idempotency-keys":
		jobRunner.PurgeIdempotencyKeys()
	case "all":
		jobRunner.RunAllJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - sweep-expired-escrows\n")
		fmt.Printf("  - submit-settlements\n")
		fmt.Printf("  - poll-receipts\n")
		fmt.Printf("  - purge-idempotency-keys\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
