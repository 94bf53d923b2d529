package domain

import "time"

type PoolStatus string

const (
	PoolStatusActive    PoolStatus = "ACTIVE"
	PoolStatusCompleted PoolStatus = "COMPLETED"
	PoolStatusCancelled PoolStatus = "CANCELLED"
)

// Pool is a fundraising target. Collected funds are custodied in the
// creator's locked-in-escrow bucket until withdrawn, so system-wide value
// conservation holds over available+locked.
type Pool struct {
	ID                  string     `json:"id"`
	CreatorID           int64      `json:"creator_id"`
	Title               string     `json:"title"`
	TargetAmountUSDC    int64      `json:"target_amount_usdc"`
	CollectedAmountUSDC int64      `json:"collected_amount_usdc"`
	Status              PoolStatus `json:"status"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

type PoolContribution struct {
	ID            string    `json:"id"`
	PoolID        string    `json:"pool_id"`
	ContributorID int64     `json:"contributor_id"`
	AmountUSDC    int64     `json:"amount_usdc"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}
