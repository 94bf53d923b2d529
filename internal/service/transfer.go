package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository"
)

type transferService struct {
	ledgerRepo repository.LedgerRepository
	walletRepo repository.WalletRepository
	escrowCfg  config.EscrowConfig
	fees       feeCalculator
	notifier   Notifier
}

func NewTransferService(
	ledgerRepo repository.LedgerRepository,
	walletRepo repository.WalletRepository,
	feesCfg config.FeesConfig,
	escrowCfg config.EscrowConfig,
	notifier Notifier,
) TransferService {
	return &transferService{
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		escrowCfg:  escrowCfg,
		fees:       feeCalculator{cfg: feesCfg},
		notifier:   notifier,
	}
}

func (s *transferService) SendToUser(ctx context.Context, idem repository.Idempotency, recipientID, amountUSDC int64) (*SendOutcome, error) {
	logger.EnterMethod("TransferService.SendToUser", "sender_id", idem.CallerID, "recipient_id", recipientID)

	if amountUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if recipientID == idem.CallerID {
		return nil, domain.ErrSelfTransfer
	}

	result, err := s.ledgerRepo.ExecuteTransfer(ctx, repository.TransferParams{
		Idempotency: idem,
		SenderID:    idem.CallerID,
		RecipientID: recipientID,
		AmountUSDC:  amountUSDC,
		FeeUSDC:     s.fees.Transfer(amountUSDC),
	})
	if err != nil {
		logger.ExitMethodWithError("TransferService.SendToUser", err)
		return nil, err
	}

	if !result.Replayed {
		_ = s.notifier.Notify(ctx, recipientID, "payment.received", map[string]string{
			"transaction_id": result.Transaction.ID,
			"amount_usdc":    strconv.FormatInt(amountUSDC, 10),
		})
	}

	logger.ExitMethod("TransferService.SendToUser", "transaction_id", result.Transaction.ID, "replayed", result.Replayed)
	return &SendOutcome{Transaction: result.Transaction, Replayed: result.Replayed}, nil
}

// SendToPhone delivers to a registered wallet when the phone is known, and
// falls back to an escrow hold with a claim link otherwise.
func (s *transferService) SendToPhone(ctx context.Context, idem repository.Idempotency, phone string, amountUSDC int64) (*SendOutcome, error) {
	logger.EnterMethod("TransferService.SendToPhone", "sender_id", idem.CallerID)

	if amountUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if phone == "" {
		return nil, fmt.Errorf("recipient phone is required")
	}

	recipient, err := s.walletRepo.FindByPhone(ctx, phone)
	if err == nil {
		return s.SendToUser(ctx, idem, recipient.UserID, amountUSDC)
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		logger.ExitMethodWithError("TransferService.SendToPhone", err)
		return nil, err
	}

	// The claim fee comes out of the escrowed amount at claim time; a hold
	// below the fee could never be claimed.
	fee := s.fees.Transfer(amountUSDC)
	if fee >= amountUSDC {
		return nil, fmt.Errorf("%w: amount does not cover the claim fee", domain.ErrInvalidAmount)
	}

	token, tokenHash, err := generateClaimToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := s.ledgerRepo.CreateEscrowHold(ctx, repository.EscrowHoldParams{
		Idempotency:      idem,
		SenderID:         idem.CallerID,
		RecipientPhone:   phone,
		AmountUSDC:       amountUSDC,
		FeeUSDC:          fee,
		ClaimTokenHash:   tokenHash,
		ExpiresAt:        now.Add(time.Duration(s.escrowCfg.ExpiryDays) * 24 * time.Hour),
		CancellableUntil: now.Add(time.Duration(s.escrowCfg.CancellableHours) * time.Hour),
	})
	if err != nil {
		logger.ExitMethodWithError("TransferService.SendToPhone", err)
		return nil, err
	}

	outcome := &SendOutcome{
		Transaction: result.Transaction,
		Escrow:      result.Escrow,
		Replayed:    result.Replayed,
	}
	// A replayed hold cannot return the token again; the hash-only storage
	// makes it unrecoverable.
	if !result.Replayed {
		outcome.ClaimToken = token
	}

	logger.ExitMethod("TransferService.SendToPhone", "transaction_id", result.Transaction.ID, "escrowed", true)
	return outcome, nil
}
