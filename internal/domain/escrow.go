package domain

import "time"

type EscrowStatus string

const (
	EscrowStatusPending   EscrowStatus = "PENDING"
	EscrowStatusClaimed   EscrowStatus = "CLAIMED"
	EscrowStatusExpired   EscrowStatus = "EXPIRED"
	EscrowStatusCancelled EscrowStatus = "CANCELLED"
	EscrowStatusRefunded  EscrowStatus = "REFUNDED"
)

// IsTerminal reports whether the escrow has reached one of its exclusive
// terminal states. At most one terminal transition ever applies to a record.
func (s EscrowStatus) IsTerminal() bool {
	return s != EscrowStatusPending
}

// EscrowPayment holds funds for a recipient who has no account yet. The
// claim token itself is never stored; only its SHA-256 hash is.
type EscrowPayment struct {
	ID               string       `json:"id"`
	SenderID         int64        `json:"sender_id"`
	RecipientPhone   string       `json:"recipient_phone"`
	AmountUSDC       int64        `json:"amount_usdc"`
	FeeUSDC          int64        `json:"fee_usdc"`
	Status           EscrowStatus `json:"status"`
	ClaimTokenHash   string       `json:"-"`
	ExpiresAt        time.Time    `json:"expires_at"`
	CancellableUntil time.Time    `json:"cancellable_until"`
	TransactionID    string       `json:"transaction_id"`
	ClaimedBy        *int64       `json:"claimed_by,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	ResolvedAt       *time.Time   `json:"resolved_at,omitempty"`
}
