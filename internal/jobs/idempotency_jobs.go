package jobs

import (
	"context"
	"time"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/logger"
)

// PurgeIdempotencyKeys drops idempotency records older than the retention
// window. Replays after the purge execute as fresh requests.
func (jr *JobRunner) PurgeIdempotencyKeys() {
	jr.runWithRecovery("PurgeIdempotencyKeys", func() {
		ctx := context.Background()

		cutoff := time.Now().Add(-config.IdempotencyRetentionHours * time.Hour)
		purged, err := jr.store.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to purge idempotency keys", "error", err)
			return
		}

		logger.Info("Purged idempotency keys", "count", purged, "cutoff", cutoff)
	})
}
