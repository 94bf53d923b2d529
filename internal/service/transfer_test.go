package service

import (
	"context"
	"errors"
	"testing"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTransferServiceForTest(ledger *MockLedgerRepo, wallets *MockWalletRepo, notifier *MockNotifier) TransferService {
	return NewTransferService(
		ledger,
		wallets,
		config.FeesConfig{TransferBps: 50},
		config.EscrowConfig{ExpiryDays: 3, CancellableHours: 24},
		notifier,
	)
}

func TestTransferService_SendToUser(t *testing.T) {
	ctx := context.Background()
	idem := repository.Idempotency{CallerID: 1, Key: "key-1", RequestHash: "hash-1"}

	t.Run("Success", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		notifier := new(MockNotifier)
		svc := newTransferServiceForTest(ledger, new(MockWalletRepo), notifier)

		ledger.On("ExecuteTransfer", ctx, repository.TransferParams{
			Idempotency: idem,
			SenderID:    1,
			RecipientID: 2,
			AmountUSDC:  100_000,
			FeeUSDC:     500,
		}).Return(&repository.LedgerResult{
			Transaction: &domain.Transaction{ID: "tx-1", Status: domain.TransactionStatusCompleted},
		}, nil).Once()
		notifier.On("Notify", ctx, int64(2), "payment.received", mock.Anything).Return(nil).Once()

		outcome, err := svc.SendToUser(ctx, idem, 2, 100_000)
		assert.NoError(t, err)
		assert.Equal(t, "tx-1", outcome.Transaction.ID)
		assert.False(t, outcome.Replayed)
		ledger.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("ReplayedSkipsNotification", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		notifier := new(MockNotifier)
		svc := newTransferServiceForTest(ledger, new(MockWalletRepo), notifier)

		ledger.On("ExecuteTransfer", ctx, mock.Anything).Return(&repository.LedgerResult{
			Transaction: &domain.Transaction{ID: "tx-1"},
			Replayed:    true,
		}, nil).Once()

		outcome, err := svc.SendToUser(ctx, idem, 2, 100_000)
		assert.NoError(t, err)
		assert.True(t, outcome.Replayed)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		svc := newTransferServiceForTest(new(MockLedgerRepo), new(MockWalletRepo), new(MockNotifier))

		_, err := svc.SendToUser(ctx, idem, 2, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("SelfTransfer", func(t *testing.T) {
		svc := newTransferServiceForTest(new(MockLedgerRepo), new(MockWalletRepo), new(MockNotifier))

		_, err := svc.SendToUser(ctx, idem, 1, 100)
		assert.ErrorIs(t, err, domain.ErrSelfTransfer)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		svc := newTransferServiceForTest(ledger, new(MockWalletRepo), new(MockNotifier))

		ledger.On("ExecuteTransfer", ctx, mock.Anything).Return(nil, domain.ErrInsufficientFunds).Once()

		_, err := svc.SendToUser(ctx, idem, 2, 100_000)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})
}

func TestTransferService_SendToPhone(t *testing.T) {
	ctx := context.Background()
	idem := repository.Idempotency{CallerID: 1, Key: "key-2", RequestHash: "hash-2"}

	t.Run("RegisteredPhoneDirectTransfer", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		wallets := new(MockWalletRepo)
		notifier := new(MockNotifier)
		svc := newTransferServiceForTest(ledger, wallets, notifier)

		wallets.On("FindByPhone", ctx, "+2348012345678").
			Return(&domain.Wallet{UserID: 2, Phone: "+2348012345678"}, nil).Once()
		ledger.On("ExecuteTransfer", ctx, mock.MatchedBy(func(p repository.TransferParams) bool {
			return p.RecipientID == 2 && p.AmountUSDC == 50_000
		})).Return(&repository.LedgerResult{
			Transaction: &domain.Transaction{ID: "tx-2"},
		}, nil).Once()
		notifier.On("Notify", ctx, int64(2), "payment.received", mock.Anything).Return(nil).Once()

		outcome, err := svc.SendToPhone(ctx, idem, "+2348012345678", 50_000)
		assert.NoError(t, err)
		assert.Nil(t, outcome.Escrow)
		assert.Empty(t, outcome.ClaimToken)
		ledger.AssertExpectations(t)
	})

	t.Run("UnknownPhoneFallsBackToEscrow", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		wallets := new(MockWalletRepo)
		svc := newTransferServiceForTest(ledger, wallets, new(MockNotifier))

		wallets.On("FindByPhone", ctx, "+2348099999999").
			Return(nil, domain.ErrWalletNotFound).Once()

		var heldParams repository.EscrowHoldParams
		ledger.On("CreateEscrowHold", ctx, mock.MatchedBy(func(p repository.EscrowHoldParams) bool {
			heldParams = p
			return p.SenderID == 1 && p.RecipientPhone == "+2348099999999" && p.AmountUSDC == 50_000
		})).Return(&repository.LedgerResult{
			Transaction: &domain.Transaction{ID: "tx-3"},
			Escrow:      &domain.EscrowPayment{ID: "esc-1", Status: domain.EscrowStatusPending},
		}, nil).Once()

		outcome, err := svc.SendToPhone(ctx, idem, "+2348099999999", 50_000)
		assert.NoError(t, err)
		assert.NotNil(t, outcome.Escrow)
		assert.NotEmpty(t, outcome.ClaimToken)
		// Stored hash matches the returned plaintext token.
		assert.Equal(t, HashClaimToken(outcome.ClaimToken), heldParams.ClaimTokenHash)
		assert.True(t, heldParams.ExpiresAt.After(heldParams.CancellableUntil))
	})

	t.Run("AmountBelowClaimFeeRejected", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		wallets := new(MockWalletRepo)
		svc := NewTransferService(
			ledger,
			wallets,
			config.FeesConfig{TransferBps: 50, MinFeeUSDC: 1_000},
			config.EscrowConfig{ExpiryDays: 3, CancellableHours: 24},
			new(MockNotifier),
		)

		wallets.On("FindByPhone", ctx, "+2348099999999").
			Return(nil, domain.ErrWalletNotFound).Once()

		// A hold of 500 with a 1000 fee floor could never pay out on claim.
		_, err := svc.SendToPhone(ctx, idem, "+2348099999999", 500)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		ledger.AssertNotCalled(t, "CreateEscrowHold", mock.Anything, mock.Anything)
	})

	t.Run("ReplayedHoldHasNoToken", func(t *testing.T) {
		ledger := new(MockLedgerRepo)
		wallets := new(MockWalletRepo)
		svc := newTransferServiceForTest(ledger, wallets, new(MockNotifier))

		wallets.On("FindByPhone", ctx, "+2348099999999").
			Return(nil, domain.ErrWalletNotFound).Once()
		ledger.On("CreateEscrowHold", ctx, mock.Anything).Return(&repository.LedgerResult{
			Transaction: &domain.Transaction{ID: "tx-3"},
			Escrow:      &domain.EscrowPayment{ID: "esc-1"},
			Replayed:    true,
		}, nil).Once()

		outcome, err := svc.SendToPhone(ctx, idem, "+2348099999999", 50_000)
		assert.NoError(t, err)
		assert.True(t, outcome.Replayed)
		assert.Empty(t, outcome.ClaimToken)
	})

	t.Run("LookupErrorPropagates", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		svc := newTransferServiceForTest(new(MockLedgerRepo), wallets, new(MockNotifier))

		wallets.On("FindByPhone", ctx, "+2348099999999").
			Return(nil, errors.New("db down")).Once()

		_, err := svc.SendToPhone(ctx, idem, "+2348099999999", 50_000)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrWalletNotFound)
	})
}
