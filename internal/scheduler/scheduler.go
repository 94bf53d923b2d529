package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"pathpay-backend/internal/jobs"
	"pathpay-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	// Sweep expired escrows back to their senders
	_, err := s.cron.AddFunc(cfg.SweepExpiredEscrows, s.jobs.SweepExpiredEscrows)
	if err != nil {
		logger.Error("Failed to register SweepExpiredEscrows job", "error", err)
	}

	// Submit due ledger transactions to the settlement chain
	_, err = s.cron.AddFunc(cfg.SubmitSettlements, s.jobs.SubmitSettlements)
	if err != nil {
		logger.Error("Failed to register SubmitSettlements job", "error", err)
	}

	// Poll chain receipts toward finality
	_, err = s.cron.AddFunc(cfg.PollReceipts, s.jobs.PollReceipts)
	if err != nil {
		logger.Error("Failed to register PollReceipts job", "error", err)
	}

	// Nightly idempotency retention purge
	_, err = s.cron.AddFunc(cfg.PurgeIdempotencyKeys, s.jobs.PurgeIdempotencyKeys)
	if err != nil {
		logger.Error("Failed to register PurgeIdempotencyKeys job", "error", err)
	}

	logger.Info("All cron jobs registered successfully")
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
