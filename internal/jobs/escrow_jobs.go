package jobs

import (
	"context"

	"pathpay-backend/internal/logger"
)

// SweepExpiredEscrows refunds pending escrows that are past their expiry.
// Each record is swept in its own database transaction, so a partial run
// leaves the remainder for the next tick.
func (jr *JobRunner) SweepExpiredEscrows() {
	jr.runWithRecovery("SweepExpiredEscrows", func() {
		ctx := context.Background()

		swept, err := jr.services.Escrow.SweepExpired(ctx)
		if err != nil {
			logger.Error("Failed to sweep expired escrows", "error", err, "swept_before_error", swept)
			return
		}

		logger.Info("Swept expired escrows", "count", swept)
	})
}
