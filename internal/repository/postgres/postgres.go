package postgres

import (
	"database/sql"

	_ "github.com/lib/pq"

	"pathpay-backend/internal/repository"
)

type Store struct {
	db *sql.DB
	repository.WalletRepository
	repository.LedgerRepository
	repository.TransactionRepository
	repository.EscrowRepository
	repository.BillSplitRepository
	repository.PoolRepository
	repository.BankAccountRepository
	repository.IdempotencyRepository
	repository.SettlementRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                    db,
		WalletRepository:      NewWalletRepository(db),
		LedgerRepository:      NewLedgerRepository(db),
		TransactionRepository: NewTransactionRepository(db),
		EscrowRepository:      NewEscrowRepository(db),
		BillSplitRepository:   NewBillSplitRepository(db),
		PoolRepository:        NewPoolRepository(db),
		BankAccountRepository: NewBankAccountRepository(db),
		IdempotencyRepository: NewIdempotencyRepository(db),
		SettlementRepository:  NewSettlementRepository(db),
	}
}
