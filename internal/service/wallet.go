package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository"
)

type walletService struct {
	walletRepo repository.WalletRepository
	txRepo     repository.TransactionRepository
}

func NewWalletService(
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
) WalletService {
	return &walletService{walletRepo: walletRepo, txRepo: txRepo}
}

// Register provisions a zero-balance wallet with a fresh custodial chain
// address. Phone uniqueness is enforced by the database.
func (s *walletService) Register(ctx context.Context, userID int64, phone string) (*domain.Wallet, error) {
	logger.EnterMethod("WalletService.Register", "user_id", userID)

	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}

	address, err := newChainAddress()
	if err != nil {
		return nil, err
	}
	wallet := &domain.Wallet{
		UserID:       userID,
		Phone:        phone,
		ChainAddress: address,
	}
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		logger.ExitMethodWithError("WalletService.Register", err)
		return nil, err
	}

	logger.ExitMethod("WalletService.Register", "user_id", userID)
	return wallet, nil
}

func newChainAddress() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("chain address generation failed: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

func (s *walletService) GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return s.walletRepo.Get(ctx, userID)
}

// GetTransaction returns a transaction only to one of its parties.
func (s *walletService) GetTransaction(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	party := (txn.SenderID != nil && *txn.SenderID == userID) ||
		(txn.RecipientID != nil && *txn.RecipientID == userID)
	if !party {
		return nil, domain.ErrTransactionNotFound
	}
	return txn, nil
}

func (s *walletService) ListTransactions(ctx context.Context, userID int64, filter repository.TransactionFilter, cursor string, limit int) ([]domain.Transaction, string, error) {
	return s.txRepo.ListByUser(ctx, userID, filter, cursor, limit)
}
