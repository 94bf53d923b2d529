package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
)

type bankAccountRepository struct {
	db *sql.DB
}

func NewBankAccountRepository(db *sql.DB) repository.BankAccountRepository {
	return &bankAccountRepository{db: db}
}

const bankAccountColumns = `id, user_id, account_number, bank_code, account_name, is_verified, is_default, status, created_at`

func (r *bankAccountRepository) Create(ctx context.Context, account *domain.BankAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO bank_accounts (id, user_id, account_number, bank_code, account_name, is_verified, is_default, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 RETURNING created_at`,
		account.ID, account.UserID, account.AccountNumber, account.BankCode, account.AccountName,
		account.IsVerified, account.IsDefault, account.Status,
	).Scan(&account.CreatedAt)
	if err != nil {
		return fmt.Errorf("bank account insert failed: %w", err)
	}
	return nil
}

func (r *bankAccountRepository) GetByID(ctx context.Context, id string) (*domain.BankAccount, error) {
	account, err := r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *bankAccountRepository) ListByUser(ctx context.Context, userID int64) ([]domain.BankAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bankAccountColumns+` FROM bank_accounts WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("bank account list failed: %w", err)
	}
	defer rows.Close()

	var accounts []domain.BankAccount
	for rows.Next() {
		var a domain.BankAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.BankCode, &a.AccountName,
			&a.IsVerified, &a.IsDefault, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *bankAccountRepository) MarkVerified(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_accounts SET is_verified = TRUE, status = $1 WHERE id = $2`,
		domain.BankAccountStatusActive, id,
	)
	if err != nil {
		return fmt.Errorf("bank account verify failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBankAccountNotFound
	}
	return nil
}

func (r *bankAccountRepository) scanOne(row *sql.Row) (*domain.BankAccount, error) {
	var a domain.BankAccount
	err := row.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.BankCode, &a.AccountName,
		&a.IsVerified, &a.IsDefault, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBankAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bank account scan failed: %w", err)
	}
	return &a, nil
}
