package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
)

type escrowRepository struct {
	db *sql.DB
}

func NewEscrowRepository(db *sql.DB) repository.EscrowRepository {
	return &escrowRepository{db: db}
}

const escrowColumns = `id, sender_id, recipient_phone, amount_usdc, fee_usdc, status, claim_token_hash,
	expires_at, cancellable_until, transaction_id, claimed_by, created_at, resolved_at`

func getEscrowRow(ctx context.Context, q querier, query string, args ...interface{}) (*domain.EscrowPayment, error) {
	escrow, err := scanEscrow(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEscrowNotFound
	}
	return escrow, err
}

func scanEscrow(row rowScanner) (*domain.EscrowPayment, error) {
	var (
		e          domain.EscrowPayment
		claimedBy  sql.NullInt64
		resolvedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.SenderID, &e.RecipientPhone, &e.AmountUSDC, &e.FeeUSDC,
		&e.Status, &e.ClaimTokenHash, &e.ExpiresAt, &e.CancellableUntil,
		&e.TransactionID, &claimedBy, &e.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if claimedBy.Valid {
		e.ClaimedBy = &claimedBy.Int64
	}
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	return &e, nil
}

func (r *escrowRepository) GetByID(ctx context.Context, id string) (*domain.EscrowPayment, error) {
	return getEscrowRow(ctx, r.db, `SELECT `+escrowColumns+` FROM escrow_payments WHERE id = $1`, id)
}

func (r *escrowRepository) ListBySender(ctx context.Context, senderID int64) ([]domain.EscrowPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+escrowColumns+` FROM escrow_payments WHERE sender_id = $1 ORDER BY created_at DESC`,
		senderID,
	)
	if err != nil {
		return nil, fmt.Errorf("escrow list failed: %w", err)
	}
	defer rows.Close()

	var escrows []domain.EscrowPayment
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}
