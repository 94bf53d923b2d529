package service

import (
	"context"
	"time"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockLedgerRepo struct{ mock.Mock }

func (m *MockLedgerRepo) ExecuteTransfer(ctx context.Context, p repository.TransferParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) CreateEscrowHold(ctx context.Context, p repository.EscrowHoldParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) ClaimEscrow(ctx context.Context, p repository.EscrowClaimParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) CancelEscrow(ctx context.Context, escrowID string, actorID int64) (*repository.LedgerResult, error) {
	args := m.Called(ctx, escrowID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) ExpireEscrows(ctx context.Context, now time.Time, limit int) (int, error) {
	args := m.Called(ctx, now, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerRepo) PayBillSplitShare(ctx context.Context, p repository.SplitPayParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) ContributeToPool(ctx context.Context, p repository.PoolContributeParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) WithdrawPool(ctx context.Context, p repository.PoolWithdrawParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) RecordOnramp(ctx context.Context, p repository.OnrampParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) ExecuteOfframp(ctx context.Context, p repository.OfframpParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepo) PurchaseUtility(ctx context.Context, p repository.UtilityPurchaseParams) (*repository.LedgerResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LedgerResult), args.Error(1)
}

type MockWalletRepo struct{ mock.Mock }

func (m *MockWalletRepo) Create(ctx context.Context, wallet *domain.Wallet) error {
	return m.Called(ctx, wallet).Error(0)
}

func (m *MockWalletRepo) Get(ctx context.Context, userID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepo) FindByPhone(ctx context.Context, phone string) (*domain.Wallet, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

type MockSplitRepo struct{ mock.Mock }

func (m *MockSplitRepo) Create(ctx context.Context, split *domain.BillSplit) error {
	return m.Called(ctx, split).Error(0)
}

func (m *MockSplitRepo) GetByID(ctx context.Context, id string) (*domain.BillSplit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillSplit), args.Error(1)
}

func (m *MockSplitRepo) ListByUser(ctx context.Context, userID int64) ([]domain.BillSplit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BillSplit), args.Error(1)
}

type MockPoolRepo struct{ mock.Mock }

func (m *MockPoolRepo) Create(ctx context.Context, pool *domain.Pool) error {
	return m.Called(ctx, pool).Error(0)
}

func (m *MockPoolRepo) GetByID(ctx context.Context, id string) (*domain.Pool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Pool), args.Error(1)
}

func (m *MockPoolRepo) Close(ctx context.Context, poolID string, creatorID int64) (*domain.Pool, error) {
	args := m.Called(ctx, poolID, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Pool), args.Error(1)
}

func (m *MockPoolRepo) ListContributions(ctx context.Context, poolID string) ([]domain.PoolContribution, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PoolContribution), args.Error(1)
}

type MockEscrowRepo struct{ mock.Mock }

func (m *MockEscrowRepo) GetByID(ctx context.Context, id string) (*domain.EscrowPayment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowPayment), args.Error(1)
}

func (m *MockEscrowRepo) ListBySender(ctx context.Context, senderID int64) ([]domain.EscrowPayment, error) {
	args := m.Called(ctx, senderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EscrowPayment), args.Error(1)
}

type MockSettlementRepo struct{ mock.Mock }

func (m *MockSettlementRepo) DueForSubmission(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockSettlementRepo) MarkSubmitted(ctx context.Context, txID, chainTxHash string) error {
	return m.Called(ctx, txID, chainTxHash).Error(0)
}

func (m *MockSettlementRepo) RescheduleSubmission(ctx context.Context, txID string, attempts int, nextAttemptAt time.Time) error {
	return m.Called(ctx, txID, attempts, nextAttemptAt).Error(0)
}

func (m *MockSettlementRepo) MarkSettlementFailed(ctx context.Context, txID, reason string) error {
	return m.Called(ctx, txID, reason).Error(0)
}

func (m *MockSettlementRepo) ListAwaitingReceipt(ctx context.Context, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockSettlementRepo) UpdateBlockchainStatus(ctx context.Context, txID string, status domain.BlockchainStatus) error {
	return m.Called(ctx, txID, status).Error(0)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Notify(ctx context.Context, userID int64, event string, payload map[string]string) error {
	return m.Called(ctx, userID, event, payload).Error(0)
}

type MockAlerts struct{ mock.Mock }

func (m *MockAlerts) SendSettlementFailureAlert(ctx context.Context, txID, reason string) error {
	return m.Called(ctx, txID, reason).Error(0)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
