package postgres

import (
	"context"
	"testing"
	"time"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func transactionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "idempotency_key", "sender_id", "recipient_id", "tx_type", "status",
		"amount_usdc", "fee_usdc", "blockchain_tx_hash", "blockchain_status",
		"settlement_attempts", "next_attempt_at", "related_entity_type",
		"related_entity_id", "metadata", "failure_reason", "created_at", "completed_at",
	})
}

func addTransactionRow(rows *sqlmock.Rows, id string, senderID, recipientID int64, txType domain.TransactionType, createdAt time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, nil, senderID, recipientID, txType, domain.TransactionStatusCompleted,
		int64(1000), int64(5), nil, domain.BlockchainStatusUnsubmitted,
		0, nil, nil, nil, nil, nil, createdAt, createdAt,
	)
}

func TestTransactionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-1").
			WillReturnRows(addTransactionRow(transactionRows(), "tx-1", 1, 2, domain.TransactionTypeSend, time.Now()))

		txn, err := repo.GetByID(ctx, "tx-1")
		assert.NoError(t, err)
		assert.Equal(t, "tx-1", txn.ID)
		assert.Equal(t, int64(1), *txn.SenderID)
		assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("missing").
			WillReturnRows(transactionRows())

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("MetadataDecoded", func(t *testing.T) {
		rows := transactionRows().AddRow(
			"tx-2", nil, int64(1), nil, domain.TransactionTypeEscrowSend, domain.TransactionStatusCompleted,
			int64(1000), int64(5), nil, domain.BlockchainStatusUnsubmitted,
			0, nil, "ESCROW", "esc-1", []byte(`{"escrow_id":"esc-1","recipient_phone":"+234"}`), nil, time.Now(), nil,
		)
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-2").
			WillReturnRows(rows)

		txn, err := repo.GetByID(ctx, "tx-2")
		assert.NoError(t, err)
		meta, ok := txn.Metadata.(*domain.EscrowMetadata)
		assert.True(t, ok)
		assert.Equal(t, "esc-1", meta.EscrowID)
	})
}

func TestTransactionRepository_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("FullPageReturnsCursor", func(t *testing.T) {
		now := time.Now()
		rows := transactionRows()
		// limit+1 rows signals another page.
		addTransactionRow(rows, "tx-3", 1, 2, domain.TransactionTypeSend, now)
		addTransactionRow(rows, "tx-2", 1, 3, domain.TransactionTypeSend, now.Add(-time.Minute))
		addTransactionRow(rows, "tx-1", 1, 4, domain.TransactionTypeSend, now.Add(-2*time.Minute))

		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE").
			WithArgs(int64(1), 3).
			WillReturnRows(rows)

		txns, cursor, err := repo.ListByUser(ctx, 1, repository.TransactionFilter{}, "", 2)
		assert.NoError(t, err)
		assert.Len(t, txns, 2)
		assert.Equal(t, "tx-2", cursor)
	})

	t.Run("LastPageHasNoCursor", func(t *testing.T) {
		rows := transactionRows()
		addTransactionRow(rows, "tx-1", 1, 2, domain.TransactionTypeSend, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE").
			WithArgs(int64(1), 21).
			WillReturnRows(rows)

		txns, cursor, err := repo.ListByUser(ctx, 1, repository.TransactionFilter{}, "", 0)
		assert.NoError(t, err)
		assert.Len(t, txns, 1)
		assert.Empty(t, cursor)
	})

	t.Run("FilterAndCursorBindInOrder", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE").
			WithArgs(int64(1), domain.TransactionTypeSend, "tx-5", 11).
			WillReturnRows(transactionRows())

		txns, cursor, err := repo.ListByUser(ctx, 1, repository.TransactionFilter{Type: domain.TransactionTypeSend}, "tx-5", 10)
		assert.NoError(t, err)
		assert.Empty(t, txns)
		assert.Empty(t, cursor)
	})
}
