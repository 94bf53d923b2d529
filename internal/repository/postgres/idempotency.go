package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pathpay-backend/internal/repository"
)

type idempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) repository.IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

// PurgeOlderThan drops idempotency records past the retention window. After
// the purge a replayed key executes fresh, which is the documented contract
// of the retention period.
func (r *idempotencyRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("idempotency purge failed: %w", err)
	}
	return res.RowsAffected()
}
