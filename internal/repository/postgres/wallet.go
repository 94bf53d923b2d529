package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
)

type walletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) repository.WalletRepository {
	return &walletRepository{db: db}
}

const walletColumns = `user_id, phone, available_usdc, locked_in_escrow_usdc, pending_incoming_usdc, chain_address, created_at, updated_at`

func (r *walletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO wallets (user_id, phone, available_usdc, locked_in_escrow_usdc, pending_incoming_usdc, chain_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		wallet.UserID, wallet.Phone, wallet.AvailableUSDC, wallet.LockedInEscrowUSDC,
		wallet.PendingIncomingUSDC, wallet.ChainAddress,
	).Scan(&wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return domain.ErrDuplicateRequest
		}
		return fmt.Errorf("wallet insert failed: %w", err)
	}
	return nil
}

func (r *walletRepository) Get(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
}

func (r *walletRepository) FindByPhone(ctx context.Context, phone string) (*domain.Wallet, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE phone = $1`, phone))
}

func (r *walletRepository) scanOne(row *sql.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.UserID, &w.Phone, &w.AvailableUSDC, &w.LockedInEscrowUSDC,
		&w.PendingIncomingUSDC, &w.ChainAddress, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet scan failed: %w", err)
	}
	return &w, nil
}
