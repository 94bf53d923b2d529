package repository

import (
	"context"
	"time"

	"pathpay-backend/internal/domain"
)

// Idempotency identifies a mutating request for deduplication. An empty Key
// means the caller accepts at-least-once execution.
type Idempotency struct {
	CallerID    int64
	Key         string
	RequestHash string
}

type TransferParams struct {
	Idempotency Idempotency
	SenderID    int64
	RecipientID int64
	AmountUSDC  int64
	FeeUSDC     int64
}

type EscrowHoldParams struct {
	Idempotency      Idempotency
	SenderID         int64
	RecipientPhone   string
	AmountUSDC       int64
	FeeUSDC          int64
	ClaimTokenHash   string
	ExpiresAt        time.Time
	CancellableUntil time.Time
}

type EscrowClaimParams struct {
	Idempotency    Idempotency
	ClaimTokenHash string
	RecipientID    int64
}

type SplitPayParams struct {
	Idempotency Idempotency
	BillSplitID string
	PayerID     int64
	FeeUSDC     int64
}

type PoolContributeParams struct {
	Idempotency   Idempotency
	PoolID        string
	ContributorID int64
	AmountUSDC    int64
	FeeUSDC       int64
}

type PoolWithdrawParams struct {
	Idempotency Idempotency
	PoolID      string
	CreatorID   int64
}

type OnrampParams struct {
	Idempotency Idempotency
	UserID      int64
	AmountUSDC  int64
	Provider    string
	ProviderRef string
}

type OfframpParams struct {
	Idempotency   Idempotency
	UserID        int64
	AmountUSDC    int64
	FeeUSDC       int64
	BankAccountID string
	Provider      string
	ProviderRef   string
}

type UtilityPurchaseParams struct {
	Idempotency Idempotency
	UserID      int64
	Type        domain.TransactionType
	AmountUSDC  int64
	FeeUSDC     int64
	Provider    string
	CustomerRef string
}

// LedgerResult is the outcome of one atomic money movement. Replayed is true
// when the idempotency guard short-circuited to a previously stored result.
type LedgerResult struct {
	Transaction     *domain.Transaction
	Escrow          *domain.EscrowPayment
	Replayed        bool
	SplitCompleted  bool
	PoolGoalReached bool
}

// LedgerRepository executes every balance-affecting operation. Each method
// runs as a single SQL transaction covering the idempotency reservation, the
// wallet bucket mutations and the transaction row's status transition, so a
// failure anywhere leaves balances exactly as before the attempt.
type LedgerRepository interface {
	ExecuteTransfer(ctx context.Context, p TransferParams) (*LedgerResult, error)
	CreateEscrowHold(ctx context.Context, p EscrowHoldParams) (*LedgerResult, error)
	ClaimEscrow(ctx context.Context, p EscrowClaimParams) (*LedgerResult, error)
	CancelEscrow(ctx context.Context, escrowID string, actorID int64) (*LedgerResult, error)
	ExpireEscrows(ctx context.Context, now time.Time, limit int) (int, error)
	PayBillSplitShare(ctx context.Context, p SplitPayParams) (*LedgerResult, error)
	ContributeToPool(ctx context.Context, p PoolContributeParams) (*LedgerResult, error)
	WithdrawPool(ctx context.Context, p PoolWithdrawParams) (*LedgerResult, error)
	RecordOnramp(ctx context.Context, p OnrampParams) (*LedgerResult, error)
	ExecuteOfframp(ctx context.Context, p OfframpParams) (*LedgerResult, error)
	PurchaseUtility(ctx context.Context, p UtilityPurchaseParams) (*LedgerResult, error)
}

type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	Get(ctx context.Context, userID int64) (*domain.Wallet, error)
	FindByPhone(ctx context.Context, phone string) (*domain.Wallet, error)
}

// TransactionFilter narrows ListByUser. Zero values match everything.
type TransactionFilter struct {
	Type   domain.TransactionType
	Status domain.TransactionStatus
}

type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID int64, filter TransactionFilter, cursor string, limit int) ([]domain.Transaction, string, error)
}

type EscrowRepository interface {
	GetByID(ctx context.Context, id string) (*domain.EscrowPayment, error)
	ListBySender(ctx context.Context, senderID int64) ([]domain.EscrowPayment, error)
}

type BillSplitRepository interface {
	Create(ctx context.Context, split *domain.BillSplit) error
	GetByID(ctx context.Context, id string) (*domain.BillSplit, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.BillSplit, error)
}

type PoolRepository interface {
	Create(ctx context.Context, pool *domain.Pool) error
	GetByID(ctx context.Context, id string) (*domain.Pool, error)
	Close(ctx context.Context, poolID string, creatorID int64) (*domain.Pool, error)
	ListContributions(ctx context.Context, poolID string) ([]domain.PoolContribution, error)
}

type BankAccountRepository interface {
	Create(ctx context.Context, account *domain.BankAccount) error
	GetByID(ctx context.Context, id string) (*domain.BankAccount, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.BankAccount, error)
	MarkVerified(ctx context.Context, id string) error
}

type IdempotencyRepository interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettlementRepository is the reconciler's view of the ledger: completed
// settlement-required transactions and their on-chain bookkeeping.
type SettlementRepository interface {
	DueForSubmission(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error)
	MarkSubmitted(ctx context.Context, txID, chainTxHash string) error
	RescheduleSubmission(ctx context.Context, txID string, attempts int, nextAttemptAt time.Time) error
	MarkSettlementFailed(ctx context.Context, txID, reason string) error
	ListAwaitingReceipt(ctx context.Context, limit int) ([]domain.Transaction, error)
	UpdateBlockchainStatus(ctx context.Context, txID string, status domain.BlockchainStatus) error
}
