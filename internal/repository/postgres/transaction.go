package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
)

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, idempotency_key, sender_id, recipient_id, tx_type, status, amount_usdc, fee_usdc,
	blockchain_tx_hash, blockchain_status, settlement_attempts, next_attempt_at,
	related_entity_type, related_entity_id, metadata, failure_reason, created_at, completed_at`

// querier is satisfied by both *sql.DB and *sql.Tx so the scan helpers can
// serve the ledger's in-transaction reads as well.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func getTransactionRow(ctx context.Context, q querier, id string) (*domain.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	return txn, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		txn           domain.Transaction
		idemKey       sql.NullString
		senderID      sql.NullInt64
		recipientID   sql.NullInt64
		chainHash     sql.NullString
		nextAttemptAt sql.NullTime
		relatedType   sql.NullString
		relatedID     sql.NullString
		metadata      []byte
		failureReason sql.NullString
		completedAt   sql.NullTime
	)
	err := row.Scan(&txn.ID, &idemKey, &senderID, &recipientID, &txn.Type, &txn.Status,
		&txn.AmountUSDC, &txn.FeeUSDC, &chainHash, &txn.BlockchainStatus,
		&txn.SettlementAttempts, &nextAttemptAt,
		&relatedType, &relatedID, &metadata, &failureReason, &txn.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if nextAttemptAt.Valid {
		txn.NextAttemptAt = &nextAttemptAt.Time
	}
	if idemKey.Valid {
		txn.IdempotencyKey = &idemKey.String
	}
	if senderID.Valid {
		txn.SenderID = &senderID.Int64
	}
	if recipientID.Valid {
		txn.RecipientID = &recipientID.Int64
	}
	if chainHash.Valid {
		txn.BlockchainTxHash = &chainHash.String
	}
	if relatedType.Valid {
		t := domain.RelatedEntityType(relatedType.String)
		txn.RelatedType = &t
	}
	if relatedID.Valid {
		txn.RelatedID = &relatedID.String
	}
	if failureReason.Valid {
		txn.FailureReason = failureReason.String
	}
	if completedAt.Valid {
		txn.CompletedAt = &completedAt.Time
	}
	meta, err := domain.UnmarshalMetadata(txn.Type, metadata)
	if err != nil {
		return nil, err
	}
	txn.Metadata = meta
	return &txn, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransactionRow(ctx, r.db, id)
}

// ListByUser pages through a user's history newest-first. The cursor is the
// ID of the last transaction of the previous page; keyset pagination keeps
// pages stable while new rows arrive.
func (r *transactionRepository) ListByUser(ctx context.Context, userID int64, filter repository.TransactionFilter, cursor string, limit int) ([]domain.Transaction, string, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE (sender_id = $1 OR recipient_id = $1)`
	args := []interface{}{userID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += ` AND tx_type = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		n := strconv.Itoa(len(args))
		query += ` AND (created_at, id) < (SELECT created_at, id FROM transactions WHERE id = $` + n + `)`
	}
	args = append(args, limit+1)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("transaction list failed: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, "", err
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(txns) > limit {
		txns = txns[:limit]
		nextCursor = txns[limit-1].ID
	}
	return txns, nextCursor, nil
}
