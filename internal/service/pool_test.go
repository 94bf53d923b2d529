package service

import (
	"context"
	"testing"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPoolService_Contribute(t *testing.T) {
	ctx := context.Background()
	idem := repository.Idempotency{CallerID: 2, Key: "key-7", RequestHash: "hash-7"}

	t.Run("Success", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		svc := NewPoolService(ledger, new(MockPoolRepo), new(MockNotifier))

		ledger.On("ContributeToPool", ctx, repository.PoolContributeParams{
			Idempotency:   idem,
			PoolID:        "pool-1",
			ContributorID: 2,
			AmountUSDC:    10_000,
		}).Return(&repository.LedgerResult{
			Transaction: &domain.Transaction{ID: "tx-7"},
		}, nil).Once()

		outcome, err := svc.Contribute(ctx, idem, "pool-1", 10_000)
		assert.NoError(t, err)
		assert.Equal(t, "tx-7", outcome.Transaction.ID)
		assert.False(t, outcome.GoalReached)
		assert.False(t, outcome.Replayed)
		ledger.AssertExpectations(t)
	})

	t.Run("GoalReachedNotifiesCreator", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		pools := new(MockPoolRepo)
		notifier := new(MockNotifier)
		svc := NewPoolService(ledger, pools, notifier)

		ledger.On("ContributeToPool", ctx, mock.Anything).Return(&repository.LedgerResult{
			Transaction:     &domain.Transaction{ID: "tx-8"},
			PoolGoalReached: true,
		}, nil).Once()
		pools.On("GetByID", ctx, "pool-1").Return(&domain.Pool{
			ID: "pool-1", CreatorID: 1, CollectedAmountUSDC: 50_000,
		}, nil).Once()
		notifier.On("Notify", ctx, int64(1), "pool.goal_reached", mock.Anything).Return(nil).Once()

		outcome, err := svc.Contribute(ctx, idem, "pool-1", 10_000)
		assert.NoError(t, err)
		assert.True(t, outcome.GoalReached)
		notifier.AssertExpectations(t)
	})

	t.Run("ReplayedGoalDoesNotRenotify", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		notifier := new(MockNotifier)
		svc := NewPoolService(ledger, new(MockPoolRepo), notifier)

		ledger.On("ContributeToPool", ctx, mock.Anything).Return(&repository.LedgerResult{
			Transaction:     &domain.Transaction{ID: "tx-8"},
			PoolGoalReached: true,
			Replayed:        true,
		}, nil).Once()

		outcome, err := svc.Contribute(ctx, idem, "pool-1", 10_000)
		assert.NoError(t, err)
		assert.True(t, outcome.Replayed)
		assert.True(t, outcome.GoalReached)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		svc := NewPoolService(new(MockLedgerRepo), new(MockPoolRepo), new(MockNotifier))

		_, err := svc.Contribute(ctx, idem, "pool-1", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

func TestPoolService_Withdraw(t *testing.T) {
	ctx := context.Background()
	idem := repository.Idempotency{CallerID: 1, Key: "key-8", RequestHash: "hash-8"}

	ledger := new(MockLedgerRepo)
	svc := NewPoolService(ledger, new(MockPoolRepo), new(MockNotifier))

	ledger.On("WithdrawPool", ctx, repository.PoolWithdrawParams{
		Idempotency: idem,
		PoolID:      "pool-1",
		CreatorID:   1,
	}).Return(&repository.LedgerResult{
		Transaction: &domain.Transaction{ID: "tx-9"},
		Replayed:    true,
	}, nil).Once()

	outcome, err := svc.Withdraw(ctx, idem, "pool-1")
	assert.NoError(t, err)
	assert.Equal(t, "tx-9", outcome.Transaction.ID)
	assert.True(t, outcome.Replayed)
}

func TestPoolService_Close(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		pools := new(MockPoolRepo)
		svc := NewPoolService(new(MockLedgerRepo), pools, new(MockNotifier))

		pools.On("Close", ctx, "pool-1", int64(1)).Return(&domain.Pool{
			ID:                  "pool-1",
			CreatorID:           1,
			Status:              domain.PoolStatusCancelled,
			CollectedAmountUSDC: 30_000,
		}, nil).Once()

		pool, err := svc.Close(ctx, 1, "pool-1")
		assert.NoError(t, err)
		assert.Equal(t, domain.PoolStatusCancelled, pool.Status)
		pools.AssertExpectations(t)
	})

	t.Run("NotCreator", func(t *testing.T) {
		pools := new(MockPoolRepo)
		svc := NewPoolService(new(MockLedgerRepo), pools, new(MockNotifier))

		pools.On("Close", ctx, "pool-1", int64(99)).Return(nil, domain.ErrUnauthorized).Once()

		_, err := svc.Close(ctx, 99, "pool-1")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
