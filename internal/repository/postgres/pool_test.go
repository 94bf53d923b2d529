package postgres

import (
	"context"
	"testing"
	"time"

	"pathpay-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func poolRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "creator_id", "title", "target_amount_usdc", "collected_amount_usdc",
		"status", "deadline", "created_at", "completed_at",
	})
}

func TestPoolRepository_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewPoolRepository(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE pools SET status").
			WithArgs(domain.PoolStatusCancelled, "pool-1", int64(1), domain.PoolStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM pools WHERE id").
			WithArgs("pool-1").
			WillReturnRows(poolRows().AddRow(
				"pool-1", int64(1), "Trip", int64(100_000), int64(30_000),
				domain.PoolStatusCancelled, nil, now, now,
			))

		pool, err := repo.Close(ctx, "pool-1", 1)
		assert.NoError(t, err)
		assert.Equal(t, domain.PoolStatusCancelled, pool.Status)
		assert.Equal(t, int64(30_000), pool.CollectedAmountUSDC)
	})

	t.Run("NotCreator", func(t *testing.T) {
		mock.ExpectExec("UPDATE pools SET status").
			WithArgs(domain.PoolStatusCancelled, "pool-1", int64(99), domain.PoolStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM pools WHERE id").
			WithArgs("pool-1").
			WillReturnRows(poolRows().AddRow(
				"pool-1", int64(1), "Trip", int64(100_000), int64(30_000),
				domain.PoolStatusActive, nil, now, nil,
			))

		_, err := repo.Close(ctx, "pool-1", 99)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("AlreadyResolved", func(t *testing.T) {
		mock.ExpectExec("UPDATE pools SET status").
			WithArgs(domain.PoolStatusCancelled, "pool-1", int64(1), domain.PoolStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM pools WHERE id").
			WithArgs("pool-1").
			WillReturnRows(poolRows().AddRow(
				"pool-1", int64(1), "Trip", int64(100_000), int64(100_000),
				domain.PoolStatusCompleted, nil, now, now,
			))

		_, err := repo.Close(ctx, "pool-1", 1)
		assert.ErrorIs(t, err, domain.ErrPoolClosed)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec("UPDATE pools SET status").
			WithArgs(domain.PoolStatusCancelled, "missing", int64(1), domain.PoolStatusActive).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM pools WHERE id").
			WithArgs("missing").
			WillReturnRows(poolRows())

		_, err := repo.Close(ctx, "missing", 1)
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	})
}
