package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository"
)

type billSplitService struct {
	ledgerRepo repository.LedgerRepository
	splitRepo  repository.BillSplitRepository
	fees       feeCalculator
	notifier   Notifier
}

func NewBillSplitService(
	ledgerRepo repository.LedgerRepository,
	splitRepo repository.BillSplitRepository,
	feesCfg config.FeesConfig,
	notifier Notifier,
) BillSplitService {
	return &billSplitService{
		ledgerRepo: ledgerRepo,
		splitRepo:  splitRepo,
		fees:       feeCalculator{cfg: feesCfg},
		notifier:   notifier,
	}
}

// Create validates and persists a split. The organizer is always the first
// participant and their share is settled immediately, since the organizer
// fronted the bill. Shares must sum exactly to the total for every split
// type; no unit is ever lost to rounding.
func (s *billSplitService) Create(ctx context.Context, organizerID int64, title string, totalUSDC int64, splitType domain.SplitType, participants []ParticipantInput) (*domain.BillSplit, error) {
	logger.EnterMethod("BillSplitService.Create", "organizer_id", organizerID, "split_type", splitType)

	if totalUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("at least one participant is required")
	}
	if participants[0].UserID != organizerID {
		participants = append([]ParticipantInput{{UserID: organizerID}}, participants...)
	}
	seen := make(map[int64]bool, len(participants))
	for _, p := range participants {
		if seen[p.UserID] {
			return nil, fmt.Errorf("duplicate participant %d", p.UserID)
		}
		seen[p.UserID] = true
	}

	shares, err := resolveShares(totalUSDC, splitType, participants)
	if err != nil {
		logger.ExitMethodWithError("BillSplitService.Create", err)
		return nil, err
	}

	now := time.Now()
	split := &domain.BillSplit{
		OrganizerID:     organizerID,
		Title:           title,
		TotalAmountUSDC: totalUSDC,
		SplitType:       splitType,
	}
	for i, p := range participants {
		participant := domain.BillSplitParticipant{
			UserID:     p.UserID,
			AmountUSDC: shares[i],
			Status:     domain.ParticipantStatusPending,
		}
		if p.UserID == organizerID {
			participant.Status = domain.ParticipantStatusPaid
			participant.PaidAt = &now
		}
		split.Participants = append(split.Participants, participant)
	}

	if err := s.splitRepo.Create(ctx, split); err != nil {
		logger.ExitMethodWithError("BillSplitService.Create", err)
		return nil, err
	}

	for _, p := range split.Participants {
		if p.UserID == organizerID {
			continue
		}
		_ = s.notifier.Notify(ctx, p.UserID, "bill_split.invited", map[string]string{
			"bill_split_id": split.ID,
			"amount_usdc":   strconv.FormatInt(p.AmountUSDC, 10),
		})
	}

	logger.ExitMethod("BillSplitService.Create", "bill_split_id", split.ID)
	return split, nil
}

// resolveShares turns participant inputs into exact per-user amounts.
func resolveShares(totalUSDC int64, splitType domain.SplitType, participants []ParticipantInput) ([]int64, error) {
	switch splitType {
	case domain.SplitTypeEqual:
		return domain.EqualShares(totalUSDC, len(participants)), nil

	case domain.SplitTypeCustom:
		var sum int64
		shares := make([]int64, len(participants))
		for i, p := range participants {
			if p.AmountUSDC < 0 {
				return nil, domain.ErrInvalidAmount
			}
			shares[i] = p.AmountUSDC
			sum += p.AmountUSDC
		}
		if sum != totalUSDC {
			return nil, domain.ErrSplitAmountMismatch
		}
		return shares, nil

	case domain.SplitTypePercentage:
		var bpsSum int64
		shares := make([]int64, len(participants))
		for i, p := range participants {
			if p.PercentBps < 0 {
				return nil, domain.ErrInvalidAmount
			}
			shares[i] = totalUSDC * p.PercentBps / 10000
			bpsSum += p.PercentBps
		}
		if bpsSum != 10000 {
			return nil, domain.ErrSplitAmountMismatch
		}
		// Rounding leftovers land on the organizer's share.
		var assigned int64
		for _, share := range shares {
			assigned += share
		}
		shares[0] += totalUSDC - assigned
		return shares, nil
	}
	return nil, fmt.Errorf("unknown split type %q", splitType)
}

func (s *billSplitService) PayShare(ctx context.Context, idem repository.Idempotency, billSplitID string) (*SplitPayOutcome, error) {
	logger.EnterMethod("BillSplitService.PayShare", "bill_split_id", billSplitID, "payer_id", idem.CallerID)

	split, err := s.splitRepo.GetByID(ctx, billSplitID)
	if err != nil {
		logger.ExitMethodWithError("BillSplitService.PayShare", err)
		return nil, err
	}
	var share int64 = -1
	for _, p := range split.Participants {
		if p.UserID == idem.CallerID {
			share = p.AmountUSDC
			break
		}
	}
	if share < 0 {
		return nil, domain.ErrNotParticipant
	}

	result, err := s.ledgerRepo.PayBillSplitShare(ctx, repository.SplitPayParams{
		Idempotency: idem,
		BillSplitID: billSplitID,
		PayerID:     idem.CallerID,
		FeeUSDC:     s.fees.Transfer(share),
	})
	if err != nil {
		logger.ExitMethodWithError("BillSplitService.PayShare", err)
		return nil, err
	}

	if result.SplitCompleted && !result.Replayed {
		_ = s.notifier.Notify(ctx, split.OrganizerID, "bill_split.completed", map[string]string{
			"bill_split_id": billSplitID,
		})
	}

	logger.ExitMethod("BillSplitService.PayShare", "transaction_id", result.Transaction.ID, "completed", result.SplitCompleted)
	return &SplitPayOutcome{
		Transaction:    result.Transaction,
		SplitCompleted: result.SplitCompleted,
		Replayed:       result.Replayed,
	}, nil
}

func (s *billSplitService) Get(ctx context.Context, userID int64, billSplitID string) (*domain.BillSplit, error) {
	split, err := s.splitRepo.GetByID(ctx, billSplitID)
	if err != nil {
		return nil, err
	}
	if split.OrganizerID != userID {
		member := false
		for _, p := range split.Participants {
			if p.UserID == userID {
				member = true
				break
			}
		}
		if !member {
			return nil, domain.ErrNotParticipant
		}
	}
	return split, nil
}

func (s *billSplitService) ListByUser(ctx context.Context, userID int64) ([]domain.BillSplit, error) {
	return s.splitRepo.ListByUser(ctx, userID)
}
