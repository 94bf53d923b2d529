package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pathpay-backend/internal/chain"
	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func newReconcilerForTest(settlements *MockSettlementRepo, wallets *MockWalletRepo, client chain.Client, alerts *MockAlerts, now time.Time) *reconcilerService {
	svc := NewReconcilerService(settlements, wallets, client, alerts, config.ChainConfig{
		ReserveAddress:   "0xreserve",
		MaxAttempts:      3,
		BackoffBaseSecs:  30,
		SubmitBatchSize:  100,
		ReceiptBatchSize: 200,
	}).(*reconcilerService)
	svc.clock = fixedClock{now: now}
	return svc
}

func TestReconcilerService_SubmitDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SubmitsAndMarks", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		wallets := new(MockWalletRepo)
		client := chain.NewMockClient()
		svc := newReconcilerForTest(settlements, wallets, client, new(MockAlerts), now)

		txn := domain.Transaction{
			ID:          "tx-1",
			SenderID:    int64Ptr(1),
			RecipientID: int64Ptr(2),
			AmountUSDC:  1000,
		}
		settlements.On("DueForSubmission", ctx, now, 100).Return([]domain.Transaction{txn}, nil).Once()
		wallets.On("Get", ctx, int64(1)).Return(&domain.Wallet{UserID: 1, ChainAddress: "0xaaa"}, nil).Once()
		wallets.On("Get", ctx, int64(2)).Return(&domain.Wallet{UserID: 2, ChainAddress: "0xbbb"}, nil).Once()
		settlements.On("MarkSubmitted", ctx, "tx-1", mock.AnythingOfType("string")).Return(nil).Once()

		submitted, err := svc.SubmitDue(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, submitted)
		settlements.AssertExpectations(t)
	})

	t.Run("OnrampUsesReserveAsSender", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		wallets := new(MockWalletRepo)
		client := chain.NewMockClient()
		svc := newReconcilerForTest(settlements, wallets, client, new(MockAlerts), now)

		txn := domain.Transaction{ID: "tx-2", RecipientID: int64Ptr(2), AmountUSDC: 1000}
		settlements.On("DueForSubmission", ctx, now, 100).Return([]domain.Transaction{txn}, nil).Once()
		wallets.On("Get", ctx, int64(2)).Return(&domain.Wallet{UserID: 2, ChainAddress: "0xbbb"}, nil).Once()
		settlements.On("MarkSubmitted", ctx, "tx-2", mock.AnythingOfType("string")).Return(nil).Once()

		submitted, err := svc.SubmitDue(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, submitted)
		wallets.AssertNotCalled(t, "Get", ctx, int64(1))
	})

	t.Run("SelfTransferFinalizedWithoutSubmission", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		wallets := new(MockWalletRepo)
		client := chain.NewMockClient()
		svc := newReconcilerForTest(settlements, wallets, client, new(MockAlerts), now)

		// Pool withdrawal: creator pays out to themselves.
		txn := domain.Transaction{ID: "tx-3", SenderID: int64Ptr(1), RecipientID: int64Ptr(1), AmountUSDC: 500}
		settlements.On("DueForSubmission", ctx, now, 100).Return([]domain.Transaction{txn}, nil).Once()
		wallets.On("Get", ctx, int64(1)).Return(&domain.Wallet{UserID: 1, ChainAddress: "0xaaa"}, nil).Twice()
		settlements.On("UpdateBlockchainStatus", ctx, "tx-3", domain.BlockchainStatusFinalized).Return(nil).Once()

		submitted, err := svc.SubmitDue(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, submitted)
		settlements.AssertNotCalled(t, "MarkSubmitted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FailureReschedulesWithBackoff", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		wallets := new(MockWalletRepo)
		client := chain.NewMockClient()
		client.SubmitErr = errors.New("gateway timeout")
		svc := newReconcilerForTest(settlements, wallets, client, new(MockAlerts), now)

		txn := domain.Transaction{ID: "tx-4", SenderID: int64Ptr(1), RecipientID: int64Ptr(2), AmountUSDC: 100, SettlementAttempts: 1}
		settlements.On("DueForSubmission", ctx, now, 100).Return([]domain.Transaction{txn}, nil).Once()
		wallets.On("Get", ctx, int64(1)).Return(&domain.Wallet{UserID: 1, ChainAddress: "0xaaa"}, nil).Once()
		wallets.On("Get", ctx, int64(2)).Return(&domain.Wallet{UserID: 2, ChainAddress: "0xbbb"}, nil).Once()
		// Second attempt: backoff doubles to 60s.
		settlements.On("RescheduleSubmission", ctx, "tx-4", 2, now.Add(60*time.Second)).Return(nil).Once()

		submitted, err := svc.SubmitDue(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, submitted)
		settlements.AssertExpectations(t)
	})

	t.Run("ExhaustedAttemptsParkAndAlert", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		wallets := new(MockWalletRepo)
		client := chain.NewMockClient()
		client.SubmitErr = errors.New("gateway timeout")
		alerts := new(MockAlerts)
		svc := newReconcilerForTest(settlements, wallets, client, alerts, now)

		txn := domain.Transaction{ID: "tx-5", SenderID: int64Ptr(1), RecipientID: int64Ptr(2), AmountUSDC: 100, SettlementAttempts: 2}
		settlements.On("DueForSubmission", ctx, now, 100).Return([]domain.Transaction{txn}, nil).Once()
		wallets.On("Get", ctx, int64(1)).Return(&domain.Wallet{UserID: 1, ChainAddress: "0xaaa"}, nil).Once()
		wallets.On("Get", ctx, int64(2)).Return(&domain.Wallet{UserID: 2, ChainAddress: "0xbbb"}, nil).Once()
		settlements.On("MarkSettlementFailed", ctx, "tx-5", "gateway timeout").Return(nil).Once()
		alerts.On("SendSettlementFailureAlert", ctx, "tx-5", "gateway timeout").Return(nil).Once()

		submitted, err := svc.SubmitDue(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, submitted)
		settlements.AssertExpectations(t)
		alerts.AssertExpectations(t)
	})
}

func TestReconcilerService_PollReceipts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	submitHash := func(t *testing.T, client *chain.MockClient) string {
		hash, err := client.SubmitTransfer(ctx, "0xaaa", "0xbbb", 100, chain.EncodeMemo("tx-1"))
		assert.NoError(t, err)
		return hash
	}

	t.Run("ConfirmsThenFinalizes", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		client := chain.NewMockClient()
		svc := newReconcilerForTest(settlements, new(MockWalletRepo), client, new(MockAlerts), now)
		hash := submitHash(t, client)

		txn := domain.Transaction{ID: "tx-1", BlockchainTxHash: strPtr(hash), BlockchainStatus: domain.BlockchainStatusSubmitted}
		settlements.On("ListAwaitingReceipt", ctx, 200).Return([]domain.Transaction{txn}, nil).Once()
		settlements.On("UpdateBlockchainStatus", ctx, "tx-1", domain.BlockchainStatusConfirmed).Return(nil).Once()

		advanced, err := svc.PollReceipts(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, advanced)

		txn.BlockchainStatus = domain.BlockchainStatusConfirmed
		settlements.On("ListAwaitingReceipt", ctx, 200).Return([]domain.Transaction{txn}, nil).Once()
		settlements.On("UpdateBlockchainStatus", ctx, "tx-1", domain.BlockchainStatusFinalized).Return(nil).Once()

		advanced, err = svc.PollReceipts(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, advanced)
		settlements.AssertExpectations(t)
	})

	t.Run("UnknownReceiptSkipped", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		client := chain.NewMockClient()
		svc := newReconcilerForTest(settlements, new(MockWalletRepo), client, new(MockAlerts), now)

		txn := domain.Transaction{ID: "tx-2", BlockchainTxHash: strPtr("0xunknown"), BlockchainStatus: domain.BlockchainStatusSubmitted}
		settlements.On("ListAwaitingReceipt", ctx, 200).Return([]domain.Transaction{txn}, nil).Once()

		advanced, err := svc.PollReceipts(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, advanced)
		settlements.AssertNotCalled(t, "UpdateBlockchainStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FailedReceiptRequeuesSubmission", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		client := chain.NewMockClient()
		svc := newReconcilerForTest(settlements, new(MockWalletRepo), client, new(MockAlerts), now)
		hash := submitHash(t, client)
		client.FailTransfer(hash)

		txn := domain.Transaction{ID: "tx-3", BlockchainTxHash: strPtr(hash), BlockchainStatus: domain.BlockchainStatusSubmitted}
		settlements.On("ListAwaitingReceipt", ctx, 200).Return([]domain.Transaction{txn}, nil).Once()
		settlements.On("RescheduleSubmission", ctx, "tx-3", 1, now.Add(30*time.Second)).Return(nil).Once()
		settlements.On("UpdateBlockchainStatus", ctx, "tx-3", domain.BlockchainStatusUnsubmitted).Return(nil).Once()

		advanced, err := svc.PollReceipts(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, advanced)
		settlements.AssertExpectations(t)
	})

	t.Run("FailedReceiptAfterMaxAttemptsParks", func(t *testing.T) {
		settlements := new(MockSettlementRepo)
		client := chain.NewMockClient()
		alerts := new(MockAlerts)
		svc := newReconcilerForTest(settlements, new(MockWalletRepo), client, alerts, now)
		hash := submitHash(t, client)
		client.FailTransfer(hash)

		txn := domain.Transaction{ID: "tx-4", BlockchainTxHash: strPtr(hash), BlockchainStatus: domain.BlockchainStatusSubmitted, SettlementAttempts: 2}
		settlements.On("ListAwaitingReceipt", ctx, 200).Return([]domain.Transaction{txn}, nil).Once()
		settlements.On("MarkSettlementFailed", ctx, "tx-4", "chain transfer failed").Return(nil).Once()
		alerts.On("SendSettlementFailureAlert", ctx, "tx-4", "chain transfer failed").Return(nil).Once()

		advanced, err := svc.PollReceipts(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 1, advanced)
		alerts.AssertExpectations(t)
	})
}
