package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository"
)

type poolService struct {
	ledgerRepo repository.LedgerRepository
	poolRepo   repository.PoolRepository
	notifier   Notifier
}

func NewPoolService(
	ledgerRepo repository.LedgerRepository,
	poolRepo repository.PoolRepository,
	notifier Notifier,
) PoolService {
	return &poolService{
		ledgerRepo: ledgerRepo,
		poolRepo:   poolRepo,
		notifier:   notifier,
	}
}

func (s *poolService) Create(ctx context.Context, creatorID int64, title string, targetUSDC int64, deadline *string) (*domain.Pool, error) {
	logger.EnterMethod("PoolService.Create", "creator_id", creatorID)

	if targetUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if title == "" {
		return nil, fmt.Errorf("pool title is required")
	}

	pool := &domain.Pool{
		CreatorID:        creatorID,
		Title:            title,
		TargetAmountUSDC: targetUSDC,
		Status:           domain.PoolStatusActive,
	}
	if deadline != nil && *deadline != "" {
		t, err := time.Parse(time.RFC3339, *deadline)
		if err != nil {
			return nil, fmt.Errorf("invalid deadline: %w", err)
		}
		if t.Before(time.Now()) {
			return nil, fmt.Errorf("deadline must be in the future")
		}
		pool.Deadline = &t
	}

	if err := s.poolRepo.Create(ctx, pool); err != nil {
		logger.ExitMethodWithError("PoolService.Create", err)
		return nil, err
	}

	logger.ExitMethod("PoolService.Create", "pool_id", pool.ID)
	return pool, nil
}

func (s *poolService) Contribute(ctx context.Context, idem repository.Idempotency, poolID string, amountUSDC int64) (*ContributeOutcome, error) {
	logger.EnterMethod("PoolService.Contribute", "pool_id", poolID, "contributor_id", idem.CallerID)

	if amountUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	result, err := s.ledgerRepo.ContributeToPool(ctx, repository.PoolContributeParams{
		Idempotency:   idem,
		PoolID:        poolID,
		ContributorID: idem.CallerID,
		AmountUSDC:    amountUSDC,
	})
	if err != nil {
		logger.ExitMethodWithError("PoolService.Contribute", err)
		return nil, err
	}

	if result.PoolGoalReached && !result.Replayed {
		pool, err := s.poolRepo.GetByID(ctx, poolID)
		if err == nil {
			_ = s.notifier.Notify(ctx, pool.CreatorID, "pool.goal_reached", map[string]string{
				"pool_id":        poolID,
				"collected_usdc": strconv.FormatInt(pool.CollectedAmountUSDC, 10),
			})
		}
	}

	logger.ExitMethod("PoolService.Contribute", "transaction_id", result.Transaction.ID, "goal_reached", result.PoolGoalReached)
	return &ContributeOutcome{
		Transaction: result.Transaction,
		GoalReached: result.PoolGoalReached,
		Replayed:    result.Replayed,
	}, nil
}

func (s *poolService) Withdraw(ctx context.Context, idem repository.Idempotency, poolID string) (*TxOutcome, error) {
	logger.EnterMethod("PoolService.Withdraw", "pool_id", poolID, "creator_id", idem.CallerID)

	result, err := s.ledgerRepo.WithdrawPool(ctx, repository.PoolWithdrawParams{
		Idempotency: idem,
		PoolID:      poolID,
		CreatorID:   idem.CallerID,
	})
	if err != nil {
		logger.ExitMethodWithError("PoolService.Withdraw", err)
		return nil, err
	}

	logger.ExitMethod("PoolService.Withdraw", "transaction_id", result.Transaction.ID)
	return &TxOutcome{Transaction: result.Transaction, Replayed: result.Replayed}, nil
}

// Close stops an active pool before its target is met. Whatever was
// collected becomes withdrawable by the creator.
func (s *poolService) Close(ctx context.Context, creatorID int64, poolID string) (*domain.Pool, error) {
	logger.EnterMethod("PoolService.Close", "pool_id", poolID, "creator_id", creatorID)

	pool, err := s.poolRepo.Close(ctx, poolID, creatorID)
	if err != nil {
		logger.ExitMethodWithError("PoolService.Close", err)
		return nil, err
	}

	logger.ExitMethod("PoolService.Close", "pool_id", poolID, "collected_usdc", pool.CollectedAmountUSDC)
	return pool, nil
}

func (s *poolService) Get(ctx context.Context, poolID string) (*domain.Pool, []domain.PoolContribution, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, nil, err
	}
	contributions, err := s.poolRepo.ListContributions(ctx, poolID)
	if err != nil {
		return nil, nil, err
	}
	return pool, contributions, nil
}
