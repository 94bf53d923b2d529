package domain

import "time"

type BankAccountStatus string

const (
	BankAccountStatusPending  BankAccountStatus = "PENDING"
	BankAccountStatusActive   BankAccountStatus = "ACTIVE"
	BankAccountStatusDisabled BankAccountStatus = "DISABLED"
)

// BankAccount is an external payout destination for offramp transactions.
// Only verified accounts may receive offramps; verification itself happens
// at the on/off-ramp provider.
type BankAccount struct {
	ID            string            `json:"id"`
	UserID        int64             `json:"user_id"`
	AccountNumber string            `json:"account_number"`
	BankCode      string            `json:"bank_code"`
	AccountName   string            `json:"account_name"`
	IsVerified    bool              `json:"is_verified"`
	IsDefault     bool              `json:"is_default"`
	Status        BankAccountStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}
