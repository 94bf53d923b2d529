package domain

import "time"

type BalanceBucket string

const (
	BucketAvailable       BalanceBucket = "AVAILABLE"
	BucketLockedInEscrow  BalanceBucket = "LOCKED_IN_ESCROW"
	BucketPendingIncoming BalanceBucket = "PENDING_INCOMING"
)

// Wallet is the authoritative spendable state for one user. All amounts are
// in the smallest pathUSD unit and each bucket must stay non-negative.
type Wallet struct {
	UserID              int64     `json:"user_id"`
	Phone               string    `json:"phone"`
	AvailableUSDC       int64     `json:"available_usdc"`
	LockedInEscrowUSDC  int64     `json:"locked_in_escrow_usdc"`
	PendingIncomingUSDC int64     `json:"pending_incoming_usdc"`
	ChainAddress        string    `json:"chain_address"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TotalUSDC is the user's share of the on-chain reserve.
func (w *Wallet) TotalUSDC() int64 {
	return w.AvailableUSDC + w.LockedInEscrowUSDC
}
