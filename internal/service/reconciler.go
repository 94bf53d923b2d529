package service

import (
	"context"
	"errors"
	"time"

	"pathpay-backend/internal/chain"
	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository"
)

// reconcilerService drains the settlement queue: completed ledger
// transactions are mirrored onto the chain, receipts are polled until
// finality, and submissions that keep failing are parked for an operator.
type reconcilerService struct {
	settlementRepo repository.SettlementRepository
	walletRepo     repository.WalletRepository
	chainClient    chain.Client
	alerts         AlertService
	cfg            config.ChainConfig
	clock          clock
}

func NewReconcilerService(
	settlementRepo repository.SettlementRepository,
	walletRepo repository.WalletRepository,
	chainClient chain.Client,
	alerts AlertService,
	cfg config.ChainConfig,
) ReconcilerService {
	return &reconcilerService{
		settlementRepo: settlementRepo,
		walletRepo:     walletRepo,
		chainClient:    chainClient,
		alerts:         alerts,
		cfg:            cfg,
		clock:          realClock{},
	}
}

// SubmitDue submits every settlement-required transaction whose backoff has
// elapsed. One failing transaction never blocks the rest of the batch.
func (s *reconcilerService) SubmitDue(ctx context.Context) (int, error) {
	logger.EnterMethod("ReconcilerService.SubmitDue")

	due, err := s.settlementRepo.DueForSubmission(ctx, s.clock.Now(), s.cfg.SubmitBatchSize)
	if err != nil {
		logger.ExitMethodWithError("ReconcilerService.SubmitDue", err)
		return 0, err
	}

	submitted := 0
	for i := range due {
		if err := s.submitOne(ctx, &due[i]); err != nil {
			logger.Error("settlement submission failed", "transaction_id", due[i].ID, "error", err)
			continue
		}
		submitted++
	}

	logger.ExitMethod("ReconcilerService.SubmitDue", "due", len(due), "submitted", submitted)
	return submitted, nil
}

func (s *reconcilerService) submitOne(ctx context.Context, txn *domain.Transaction) error {
	from, to, err := s.resolveAddresses(ctx, txn)
	if err != nil {
		return err
	}

	// Self-transfers (pool withdrawals) move nothing between addresses on
	// chain; the ledger row is final as-is.
	if from == to {
		return s.settlementRepo.UpdateBlockchainStatus(ctx, txn.ID, domain.BlockchainStatusFinalized)
	}

	hash, err := s.chainClient.SubmitTransfer(ctx, from, to, txn.AmountUSDC, chain.EncodeMemo(txn.ID))
	if err != nil {
		return s.handleSubmitFailure(ctx, txn, err)
	}
	return s.settlementRepo.MarkSubmitted(ctx, txn.ID, hash)
}

// resolveAddresses maps the ledger parties to chain addresses. A missing
// party means the reserve account: onramps mint from the reserve, offramps
// and utility-style burns pay into it.
func (s *reconcilerService) resolveAddresses(ctx context.Context, txn *domain.Transaction) (from, to string, err error) {
	from = s.cfg.ReserveAddress
	to = s.cfg.ReserveAddress
	if txn.SenderID != nil {
		wallet, err := s.walletRepo.Get(ctx, *txn.SenderID)
		if err != nil {
			return "", "", err
		}
		from = wallet.ChainAddress
	}
	if txn.RecipientID != nil {
		wallet, err := s.walletRepo.Get(ctx, *txn.RecipientID)
		if err != nil {
			return "", "", err
		}
		to = wallet.ChainAddress
	}
	return from, to, nil
}

// handleSubmitFailure schedules a retry with exponential backoff, or parks
// the transaction and alerts once attempts are exhausted.
func (s *reconcilerService) handleSubmitFailure(ctx context.Context, txn *domain.Transaction, cause error) error {
	attempts := txn.SettlementAttempts + 1
	if attempts >= s.cfg.MaxAttempts {
		if err := s.settlementRepo.MarkSettlementFailed(ctx, txn.ID, cause.Error()); err != nil {
			return err
		}
		_ = s.alerts.SendSettlementFailureAlert(ctx, txn.ID, cause.Error())
		return cause
	}

	backoff := time.Duration(s.cfg.BackoffBaseSecs) * time.Second * (1 << (attempts - 1))
	if err := s.settlementRepo.RescheduleSubmission(ctx, txn.ID, attempts, s.clock.Now().Add(backoff)); err != nil {
		return err
	}
	return cause
}

// PollReceipts advances submitted transactions toward finality. A receipt
// the chain does not know yet is skipped; a failed receipt feeds back into
// the submission retry path.
func (s *reconcilerService) PollReceipts(ctx context.Context) (int, error) {
	logger.EnterMethod("ReconcilerService.PollReceipts")

	awaiting, err := s.settlementRepo.ListAwaitingReceipt(ctx, s.cfg.ReceiptBatchSize)
	if err != nil {
		logger.ExitMethodWithError("ReconcilerService.PollReceipts", err)
		return 0, err
	}

	advanced := 0
	for i := range awaiting {
		txn := &awaiting[i]
		if txn.BlockchainTxHash == nil {
			continue
		}
		receipt, err := s.chainClient.GetReceipt(ctx, *txn.BlockchainTxHash)
		if errors.Is(err, chain.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Error("receipt poll failed", "transaction_id", txn.ID, "error", err)
			continue
		}

		switch receipt.Status {
		case chain.ReceiptStatusConfirmed:
			if txn.BlockchainStatus == domain.BlockchainStatusSubmitted {
				if err := s.settlementRepo.UpdateBlockchainStatus(ctx, txn.ID, domain.BlockchainStatusConfirmed); err != nil {
					return advanced, err
				}
				advanced++
			}
		case chain.ReceiptStatusFinalized:
			if err := s.settlementRepo.UpdateBlockchainStatus(ctx, txn.ID, domain.BlockchainStatusFinalized); err != nil {
				return advanced, err
			}
			advanced++
		case chain.ReceiptStatusFailed:
			if err := s.requeueFailedSubmission(ctx, txn); err != nil {
				return advanced, err
			}
			advanced++
		}
	}

	logger.ExitMethod("ReconcilerService.PollReceipts", "awaiting", len(awaiting), "advanced", advanced)
	return advanced, nil
}

// requeueFailedSubmission puts a chain-rejected transaction back on the
// submission queue, or parks it once attempts run out.
func (s *reconcilerService) requeueFailedSubmission(ctx context.Context, txn *domain.Transaction) error {
	attempts := txn.SettlementAttempts + 1
	if attempts >= s.cfg.MaxAttempts {
		if err := s.settlementRepo.MarkSettlementFailed(ctx, txn.ID, "chain transfer failed"); err != nil {
			return err
		}
		_ = s.alerts.SendSettlementFailureAlert(ctx, txn.ID, "chain transfer failed")
		return nil
	}

	backoff := time.Duration(s.cfg.BackoffBaseSecs) * time.Second * (1 << (attempts - 1))
	if err := s.settlementRepo.RescheduleSubmission(ctx, txn.ID, attempts, s.clock.Now().Add(backoff)); err != nil {
		return err
	}
	return s.settlementRepo.UpdateBlockchainStatus(ctx, txn.ID, domain.BlockchainStatusUnsubmitted)
}
