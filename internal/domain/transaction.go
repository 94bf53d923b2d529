package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type TransactionType string

const (
	TransactionTypeSend             TransactionType = "SEND"
	TransactionTypeReceive          TransactionType = "RECEIVE"
	TransactionTypeEscrowSend       TransactionType = "ESCROW_SEND"
	TransactionTypeEscrowClaim      TransactionType = "ESCROW_CLAIM"
	TransactionTypeEscrowRefund     TransactionType = "ESCROW_REFUND"
	TransactionTypeOnramp           TransactionType = "ONRAMP"
	TransactionTypeOfframp          TransactionType = "OFFRAMP"
	TransactionTypeBillSplitPay     TransactionType = "BILL_SPLIT_PAY"
	TransactionTypeBillSplitReceive TransactionType = "BILL_SPLIT_RECEIVE"
	TransactionTypePoolContribute   TransactionType = "POOL_CONTRIBUTE"
	TransactionTypePoolWithdraw     TransactionType = "POOL_WITHDRAW"
	TransactionTypeAirtime          TransactionType = "AIRTIME"
	TransactionTypeData             TransactionType = "DATA"
	TransactionTypeElectricity      TransactionType = "ELECTRICITY"
	TransactionTypeCable            TransactionType = "CABLE"
	TransactionTypeFee              TransactionType = "FEE"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
	TransactionStatusExpired    TransactionStatus = "EXPIRED"
)

// IsTerminal reports whether a transaction in this status is immutable.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusExpired:
		return true
	}
	return false
}

// CanTransition enforces the forward-only status state machine.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return to == TransactionStatusProcessing ||
			to == TransactionStatusFailed ||
			to == TransactionStatusCancelled ||
			to == TransactionStatusExpired
	case TransactionStatusProcessing:
		return to == TransactionStatusCompleted || to == TransactionStatusFailed
	}
	return false
}

type BlockchainStatus string

const (
	BlockchainStatusUnsubmitted BlockchainStatus = "UNSUBMITTED"
	BlockchainStatusSubmitted   BlockchainStatus = "SUBMITTED"
	BlockchainStatusConfirmed   BlockchainStatus = "CONFIRMED"
	BlockchainStatusFinalized   BlockchainStatus = "FINALIZED"
	BlockchainStatusFailed      BlockchainStatus = "FAILED"
)

// RequiresSettlement reports whether a completed transaction of this type
// must be mirrored on-chain by the reconciler.
func (t TransactionType) RequiresSettlement() bool {
	switch t {
	case TransactionTypeSend, TransactionTypeEscrowClaim,
		TransactionTypeOnramp, TransactionTypeOfframp,
		TransactionTypeBillSplitPay, TransactionTypePoolContribute,
		TransactionTypePoolWithdraw:
		return true
	}
	return false
}

type RelatedEntityType string

const (
	RelatedEntityEscrow      RelatedEntityType = "ESCROW"
	RelatedEntityBillSplit   RelatedEntityType = "BILL_SPLIT"
	RelatedEntityPool        RelatedEntityType = "POOL"
	RelatedEntityBankAccount RelatedEntityType = "BANK_ACCOUNT"
)

// Transaction is one money-movement intent and its outcome. A row is created
// PENDING and only ever moves forward; fee and principal are two effects of
// the same row so retries stay keyed to a single idempotency record.
type Transaction struct {
	ID               string              `json:"id"`
	IdempotencyKey   *string             `json:"idempotency_key,omitempty"`
	SenderID         *int64              `json:"sender_id,omitempty"`
	RecipientID      *int64              `json:"recipient_id,omitempty"`
	Type             TransactionType     `json:"tx_type"`
	Status           TransactionStatus   `json:"status"`
	AmountUSDC       int64               `json:"amount_usdc"`
	FeeUSDC          int64               `json:"fee_usdc"`
	BlockchainTxHash *string             `json:"blockchain_tx_hash,omitempty"`
	BlockchainStatus BlockchainStatus    `json:"blockchain_status"`
	RelatedType      *RelatedEntityType  `json:"related_entity_type,omitempty"`
	RelatedID        *string             `json:"related_entity_id,omitempty"`
	Metadata         TransactionMetadata `json:"metadata,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`

	// Settlement bookkeeping, maintained by the reconciler.
	SettlementAttempts int        `json:"-"`
	NextAttemptAt      *time.Time `json:"-"`
}

// TransactionMetadata is the tagged union of per-type transaction details.
// Each transaction type that carries extra fields has its own concrete
// struct, so code downstream never digs through an untyped bag.
type TransactionMetadata interface {
	metadataKind() string
}

type EscrowMetadata struct {
	EscrowID       string `json:"escrow_id"`
	RecipientPhone string `json:"recipient_phone"`
}

func (EscrowMetadata) metadataKind() string { return "escrow" }

type BillSplitMetadata struct {
	BillSplitID   string `json:"bill_split_id"`
	ParticipantID string `json:"participant_id"`
}

func (BillSplitMetadata) metadataKind() string { return "bill_split" }

type PoolMetadata struct {
	PoolID string `json:"pool_id"`
}

func (PoolMetadata) metadataKind() string { return "pool" }

type UtilityMetadata struct {
	Provider    string `json:"provider"`
	CustomerRef string `json:"customer_ref"`
}

func (UtilityMetadata) metadataKind() string { return "utility" }

type RampMetadata struct {
	Provider      string `json:"provider"`
	ProviderRef   string `json:"provider_ref"`
	BankAccountID string `json:"bank_account_id,omitempty"`
}

func (RampMetadata) metadataKind() string { return "ramp" }

// MarshalMetadata serializes the typed metadata for storage. Nil metadata
// stores as NULL.
func MarshalMetadata(m TransactionMetadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// UnmarshalMetadata restores the concrete metadata struct for a transaction
// type from its stored JSON.
func UnmarshalMetadata(txType TransactionType, raw []byte) (TransactionMetadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var target TransactionMetadata
	switch txType {
	case TransactionTypeEscrowSend, TransactionTypeEscrowClaim, TransactionTypeEscrowRefund:
		target = &EscrowMetadata{}
	case TransactionTypeBillSplitPay, TransactionTypeBillSplitReceive:
		target = &BillSplitMetadata{}
	case TransactionTypePoolContribute, TransactionTypePoolWithdraw:
		target = &PoolMetadata{}
	case TransactionTypeAirtime, TransactionTypeData, TransactionTypeElectricity, TransactionTypeCable:
		target = &UtilityMetadata{}
	case TransactionTypeOnramp, TransactionTypeOfframp:
		target = &RampMetadata{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", txType, err)
	}
	return target, nil
}
