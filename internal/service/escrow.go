package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository"
)

type escrowService struct {
	ledgerRepo repository.LedgerRepository
	escrowRepo repository.EscrowRepository
	escrowCfg  config.EscrowConfig
	notifier   Notifier
	clock      clock
}

func NewEscrowService(
	ledgerRepo repository.LedgerRepository,
	escrowRepo repository.EscrowRepository,
	escrowCfg config.EscrowConfig,
	notifier Notifier,
) EscrowService {
	return &escrowService{
		ledgerRepo: ledgerRepo,
		escrowRepo: escrowRepo,
		escrowCfg:  escrowCfg,
		notifier:   notifier,
		clock:      realClock{},
	}
}

// generateClaimToken mints the single-use claim secret. Only the SHA-256
// hash of the token is ever persisted.
func generateClaimToken() (token, tokenHash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("claim token generation failed: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, HashClaimToken(token), nil
}

// HashClaimToken maps a claim token to its stored lookup hash.
func HashClaimToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *escrowService) Claim(ctx context.Context, idem repository.Idempotency, claimToken string) (*SendOutcome, error) {
	logger.EnterMethod("EscrowService.Claim", "recipient_id", idem.CallerID)

	if claimToken == "" {
		return nil, domain.ErrEscrowNotFound
	}

	result, err := s.ledgerRepo.ClaimEscrow(ctx, repository.EscrowClaimParams{
		Idempotency:    idem,
		ClaimTokenHash: HashClaimToken(claimToken),
		RecipientID:    idem.CallerID,
	})
	if err != nil {
		logger.ExitMethodWithError("EscrowService.Claim", err)
		return nil, err
	}

	if !result.Replayed && result.Escrow != nil {
		_ = s.notifier.Notify(ctx, result.Escrow.SenderID, "escrow.claimed", map[string]string{
			"escrow_id":   result.Escrow.ID,
			"amount_usdc": strconv.FormatInt(result.Escrow.AmountUSDC, 10),
		})
	}

	logger.ExitMethod("EscrowService.Claim", "transaction_id", result.Transaction.ID)
	return &SendOutcome{Transaction: result.Transaction, Escrow: result.Escrow, Replayed: result.Replayed}, nil
}

func (s *escrowService) Cancel(ctx context.Context, escrowID string, actorID int64) (*domain.EscrowPayment, error) {
	logger.EnterMethod("EscrowService.Cancel", "escrow_id", escrowID, "actor_id", actorID)

	result, err := s.ledgerRepo.CancelEscrow(ctx, escrowID, actorID)
	if err != nil {
		logger.ExitMethodWithError("EscrowService.Cancel", err)
		return nil, err
	}

	logger.ExitMethod("EscrowService.Cancel", "escrow_id", escrowID)
	return result.Escrow, nil
}

func (s *escrowService) ListSent(ctx context.Context, senderID int64) ([]domain.EscrowPayment, error) {
	return s.escrowRepo.ListBySender(ctx, senderID)
}

// SweepExpired refunds every pending escrow past its expiry. Safe to run
// concurrently and on any schedule.
func (s *escrowService) SweepExpired(ctx context.Context) (int, error) {
	logger.EnterMethod("EscrowService.SweepExpired")

	swept, err := s.ledgerRepo.ExpireEscrows(ctx, s.clock.Now(), s.escrowCfg.SweepBatchSize)
	if err != nil {
		logger.ExitMethodWithError("EscrowService.SweepExpired", err)
		return swept, err
	}

	logger.ExitMethod("EscrowService.SweepExpired", "swept", swept)
	return swept, nil
}
