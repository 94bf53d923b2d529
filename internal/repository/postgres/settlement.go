package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
)

type settlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) repository.SettlementRepository {
	return &settlementRepository{db: db}
}

// DueForSubmission returns completed settlement-required transactions that
// have never been submitted, or whose retry backoff has elapsed.
func (r *settlementRepository) DueForSubmission(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE settlement_required = TRUE
		   AND status = $1
		   AND blockchain_status = $2
		   AND (next_attempt_at IS NULL OR next_attempt_at <= $3)
		 ORDER BY created_at
		 LIMIT $4`,
		domain.TransactionStatusCompleted, domain.BlockchainStatusUnsubmitted, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due settlement scan failed: %w", err)
	}
	return collectTransactions(rows)
}

func (r *settlementRepository) MarkSubmitted(ctx context.Context, txID, chainTxHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET blockchain_status = $1, blockchain_tx_hash = $2 WHERE id = $3`,
		domain.BlockchainStatusSubmitted, chainTxHash, txID,
	)
	if err != nil {
		return fmt.Errorf("settlement submit update failed: %w", err)
	}
	return nil
}

func (r *settlementRepository) RescheduleSubmission(ctx context.Context, txID string, attempts int, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET settlement_attempts = $1, next_attempt_at = $2 WHERE id = $3`,
		attempts, nextAttemptAt, txID,
	)
	if err != nil {
		return fmt.Errorf("settlement reschedule failed: %w", err)
	}
	return nil
}

// MarkSettlementFailed parks a transaction for operator review. The ledger
// effect stays committed; only the on-chain mirroring is marked failed.
func (r *settlementRepository) MarkSettlementFailed(ctx context.Context, txID, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET blockchain_status = $1, failure_reason = $2 WHERE id = $3`,
		domain.BlockchainStatusFailed, reason, txID,
	)
	if err != nil {
		return fmt.Errorf("settlement failure update failed: %w", err)
	}
	return nil
}

func (r *settlementRepository) ListAwaitingReceipt(ctx context.Context, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE blockchain_status IN ($1, $2)
		 ORDER BY created_at
		 LIMIT $3`,
		domain.BlockchainStatusSubmitted, domain.BlockchainStatusConfirmed, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("awaiting receipt scan failed: %w", err)
	}
	return collectTransactions(rows)
}

func (r *settlementRepository) UpdateBlockchainStatus(ctx context.Context, txID string, status domain.BlockchainStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET blockchain_status = $1 WHERE id = $2`,
		status, txID,
	)
	if err != nil {
		return fmt.Errorf("blockchain status update failed: %w", err)
	}
	return nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}
