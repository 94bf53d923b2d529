package service

import (
	"context"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
)

// SendOutcome is what a send operation produced: a direct transfer, or an
// escrow hold when the recipient has no account yet. ClaimToken is only set
// on a fresh escrow hold and is never recoverable afterwards.
type SendOutcome struct {
	Transaction *domain.Transaction
	Escrow      *domain.EscrowPayment
	ClaimToken  string
	Replayed    bool
}

type WalletService interface {
	Register(ctx context.Context, userID int64, phone string) (*domain.Wallet, error)
	GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error)
	GetTransaction(ctx context.Context, userID int64, txID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, filter repository.TransactionFilter, cursor string, limit int) ([]domain.Transaction, string, error)
}

type TransferService interface {
	SendToUser(ctx context.Context, idem repository.Idempotency, recipientID, amountUSDC int64) (*SendOutcome, error)
	SendToPhone(ctx context.Context, idem repository.Idempotency, phone string, amountUSDC int64) (*SendOutcome, error)
}

type EscrowService interface {
	Claim(ctx context.Context, idem repository.Idempotency, claimToken string) (*SendOutcome, error)
	Cancel(ctx context.Context, escrowID string, actorID int64) (*domain.EscrowPayment, error)
	ListSent(ctx context.Context, senderID int64) ([]domain.EscrowPayment, error)
	SweepExpired(ctx context.Context) (int, error)
}

// ParticipantInput describes one participant of a new bill split. AmountUSDC
// is used for CUSTOM splits, PercentBps (basis points) for PERCENTAGE splits,
// and both are ignored for EQUAL splits.
type ParticipantInput struct {
	UserID     int64
	AmountUSDC int64
	PercentBps int64
}

// TxOutcome pairs a ledger transaction with whether the idempotency guard
// replayed a previously stored attempt instead of executing a new one.
type TxOutcome struct {
	Transaction *domain.Transaction
	Replayed    bool
}

// SplitPayOutcome reports a share payment and whether it left the split
// fully settled.
type SplitPayOutcome struct {
	Transaction    *domain.Transaction
	SplitCompleted bool
	Replayed       bool
}

// ContributeOutcome reports a pool contribution and whether the pool's
// target is now met.
type ContributeOutcome struct {
	Transaction *domain.Transaction
	GoalReached bool
	Replayed    bool
}

type BillSplitService interface {
	Create(ctx context.Context, organizerID int64, title string, totalUSDC int64, splitType domain.SplitType, participants []ParticipantInput) (*domain.BillSplit, error)
	PayShare(ctx context.Context, idem repository.Idempotency, billSplitID string) (*SplitPayOutcome, error)
	Get(ctx context.Context, userID int64, billSplitID string) (*domain.BillSplit, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.BillSplit, error)
}

type PoolService interface {
	Create(ctx context.Context, creatorID int64, title string, targetUSDC int64, deadline *string) (*domain.Pool, error)
	Contribute(ctx context.Context, idem repository.Idempotency, poolID string, amountUSDC int64) (*ContributeOutcome, error)
	Withdraw(ctx context.Context, idem repository.Idempotency, poolID string) (*TxOutcome, error)
	Close(ctx context.Context, creatorID int64, poolID string) (*domain.Pool, error)
	Get(ctx context.Context, poolID string) (*domain.Pool, []domain.PoolContribution, error)
}

type PaymentsService interface {
	Onramp(ctx context.Context, idem repository.Idempotency, amountUSDC int64, provider, providerRef string) (*TxOutcome, error)
	Offramp(ctx context.Context, idem repository.Idempotency, amountUSDC int64, bankAccountID, provider, providerRef string) (*TxOutcome, error)
	PurchaseUtility(ctx context.Context, idem repository.Idempotency, txType domain.TransactionType, amountUSDC int64, provider, customerRef string) (*TxOutcome, error)
	AddBankAccount(ctx context.Context, userID int64, accountNumber, bankCode, accountName string, isDefault bool) (*domain.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID int64) ([]domain.BankAccount, error)
	VerifyBankAccount(ctx context.Context, userID int64, bankAccountID string) error
}

// ReconcilerService mirrors completed ledger transactions onto the
// settlement chain and tracks their receipts.
type ReconcilerService interface {
	SubmitDue(ctx context.Context) (int, error)
	PollReceipts(ctx context.Context) (int, error)
}

// AlertService delivers operator alerts for conditions that need a human.
type AlertService interface {
	SendSettlementFailureAlert(ctx context.Context, txID, reason string) error
}

// Notifier delivers best-effort user notifications. Failures are ignored at
// call sites; notification delivery never gates a money movement.
type Notifier interface {
	Notify(ctx context.Context, userID int64, event string, payload map[string]string) error
}
