package domain

import "errors"

// Sentinel errors for expected failure modes. Services and repositories wrap
// these with context via fmt.Errorf and %w; the API layer maps them to
// machine-readable codes.
var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrEscrowNotFound         = errors.New("escrow not found")
	ErrBillSplitNotFound      = errors.New("bill split not found")
	ErrPoolNotFound           = errors.New("pool not found")
	ErrBankAccountNotFound    = errors.New("bank account not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrDuplicateRequest       = errors.New("duplicate request")
	ErrRequestInProgress      = errors.New("request in progress")
	ErrIdempotencyMismatch    = errors.New("idempotency key reused with different payload")
	ErrEscrowExpired          = errors.New("escrow has expired")
	ErrEscrowAlreadyResolved  = errors.New("escrow already resolved")
	ErrEscrowNotCancellable   = errors.New("escrow can no longer be cancelled")
	ErrSplitAmountMismatch    = errors.New("participant amounts do not sum to the split total")
	ErrSplitAlreadyPaid       = errors.New("participant share already paid")
	ErrNotParticipant         = errors.New("user is not a participant of this split")
	ErrPoolClosed             = errors.New("pool is not accepting contributions")
	ErrPoolNotWithdrawable    = errors.New("pool funds cannot be withdrawn yet")
	ErrBankAccountNotVerified = errors.New("bank account is not verified")
	ErrSelfTransfer           = errors.New("cannot transfer to self")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrUnauthorized           = errors.New("actor is not allowed to perform this action")
)
