package jobs

import (
	"context"

	"pathpay-backend/internal/logger"
)

// SubmitSettlements pushes due ledger transactions to the settlement chain.
func (jr *JobRunner) SubmitSettlements() {
	jr.runWithRecovery("SubmitSettlements", func() {
		ctx := context.Background()

		submitted, err := jr.services.Reconciler.SubmitDue(ctx)
		if err != nil {
			logger.Error("Failed to submit settlements", "error", err)
			return
		}

		logger.Info("Submitted settlements", "count", submitted)
	})
}

// PollReceipts advances submitted settlements toward on-chain finality.
func (jr *JobRunner) PollReceipts() {
	jr.runWithRecovery("PollReceipts", func() {
		ctx := context.Background()

		advanced, err := jr.services.Reconciler.PollReceipts(ctx)
		if err != nil {
			logger.Error("Failed to poll settlement receipts", "error", err)
			return
		}

		logger.Info("Polled settlement receipts", "advanced", advanced)
	})
}
