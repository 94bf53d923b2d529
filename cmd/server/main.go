package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "pathpay-backend/internal/api/http"
	"pathpay-backend/internal/config"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository/postgres"
	"pathpay-backend/internal/security"
	"pathpay-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting PathPay Ledger API...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
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

	// Initialize Services
	var notifier service.Notifier
	if cfg.Alerts.WebhookURL != "" {
		notifier = service.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	} else {
		notifier = service.NewNoopNotifier()
	}

	walletService := service.NewWalletService(store.WalletRepository, store.TransactionRepository)
	transferService := service.NewTransferService(store.LedgerRepository, store.WalletRepository, cfg.Fees, cfg.Escrow, notifier)
	escrowService := service.NewEscrowService(store.LedgerRepository, store.EscrowRepository, cfg.Escrow, notifier)
	billSplitService := service.NewBillSplitService(store.LedgerRepository, store.BillSplitRepository, cfg.Fees, notifier)
	poolService := service.NewPoolService(store.LedgerRepository, store.PoolRepository, notifier)
	paymentsService := service.NewPaymentsService(store.LedgerRepository, store.BankAccountRepository, cfg.Fees)

	// Initialize HTTP API
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	handler := httpapi.NewHandler(walletService, transferService, escrowService, billSplitService, poolService, paymentsService)
	router := httpapi.NewRouter(handler, tokenManager)

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
