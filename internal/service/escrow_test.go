package service

import (
	"context"
	"testing"
	"time"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGenerateClaimToken(t *testing.T) {
	token, hash, err := generateClaimToken()
	assert.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, HashClaimToken(token), hash)
	assert.NotEqual(t, token, hash)

	// Each token is unique.
	other, _, err := generateClaimToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestEscrowService_Claim(t *testing.T) {
	ctx := context.Background()
	idem := repository.Idempotency{CallerID: 2, Key: "key-5", RequestHash: "hash-5"}

	t.Run("Success", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		notifier := new(MockNotifier)
		svc := NewEscrowService(ledger, new(MockEscrowRepo), config.EscrowConfig{}, notifier)

		token, tokenHash, err := generateClaimToken()
		assert.NoError(t, err)

		ledger.On("ClaimEscrow", ctx, repository.EscrowClaimParams{
			Idempotency:    idem,
			ClaimTokenHash: tokenHash,
			RecipientID:    2,
		}).Return(&repository.LedgerResult{
			Transaction: &domain.Transaction{ID: "tx-6"},
			Escrow:      &domain.EscrowPayment{ID: "esc-1", SenderID: 1, AmountUSDC: 500},
		}, nil).Once()
		notifier.On("Notify", ctx, int64(1), "escrow.claimed", mock.Anything).Return(nil).Once()

		outcome, err := svc.Claim(ctx, idem, token)
		assert.NoError(t, err)
		assert.Equal(t, "esc-1", outcome.Escrow.ID)
		ledger.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		svc := NewEscrowService(new(MockLedgerRepo), new(MockEscrowRepo), config.EscrowConfig{}, new(MockNotifier))

		_, err := svc.Claim(ctx, idem, "")
		assert.ErrorIs(t, err, domain.ErrEscrowNotFound)
	})

	t.Run("ExpiredEscrow", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		svc := NewEscrowService(ledger, new(MockEscrowRepo), config.EscrowConfig{}, new(MockNotifier))

		ledger.On("ClaimEscrow", ctx, mock.Anything).Return(nil, domain.ErrEscrowExpired).Once()

		_, err := svc.Claim(ctx, idem, "some-token")
		assert.ErrorIs(t, err, domain.ErrEscrowExpired)
	})
}

func TestEscrowService_Cancel(t *testing.T) {
	ctx := context.Background()
	ledger := new(MockLedgerRepo)
	svc := NewEscrowService(ledger, new(MockEscrowRepo), config.EscrowConfig{}, new(MockNotifier))

	ledger.On("CancelEscrow", ctx, "esc-1", int64(1)).Return(&repository.LedgerResult{
		Escrow: &domain.EscrowPayment{ID: "esc-1", Status: domain.EscrowStatusCancelled},
	}, nil).Once()

	escrow, err := svc.Cancel(ctx, "esc-1", 1)
	assert.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusCancelled, escrow.Status)
}

func TestEscrowService_SweepExpired(t *testing.T) {
	ctx := context.Background()
	ledger := new(MockLedgerRepo)
	svc := NewEscrowService(ledger, new(MockEscrowRepo), config.EscrowConfig{SweepBatchSize: 200}, new(MockNotifier))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.(*escrowService).clock = fixedClock{now: now}

	ledger.On("ExpireEscrows", ctx, now, 200).Return(3, nil).Once()

	swept, err := svc.SweepExpired(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, swept)
	ledger.AssertExpectations(t)
}
