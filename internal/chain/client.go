package chain

import (
	"context"
	"errors"
)

// ReceiptStatus is the chain-side lifecycle of a submitted transfer.
type ReceiptStatus string

const (
	ReceiptStatusPending   ReceiptStatus = "PENDING"
	ReceiptStatusConfirmed ReceiptStatus = "CONFIRMED"
	ReceiptStatusFinalized ReceiptStatus = "FINALIZED"
	ReceiptStatusFailed    ReceiptStatus = "FAILED"
)

// Receipt is the chain's view of a previously submitted transfer.
type Receipt struct {
	TxHash      string        `json:"tx_hash"`
	Status      ReceiptStatus `json:"status"`
	BlockNumber int64         `json:"block_number"`
}

// ErrNotFound is returned when the chain has no record of a hash, which can
// happen transiently right after submission.
var ErrNotFound = errors.New("chain: transaction not found")

// Client submits reserve-account transfers to the settlement chain and polls
// their receipts. Implementations must be safe for concurrent use.
type Client interface {
	// SubmitTransfer broadcasts a transfer between custodial addresses and
	// returns the chain transaction hash. The memo carries the ledger
	// transaction ID so chain history can be joined back to the ledger.
	SubmitTransfer(ctx context.Context, from, to string, amountUSDC int64, memo string) (string, error)

	// GetReceipt fetches the current receipt for a submitted hash.
	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)
}
