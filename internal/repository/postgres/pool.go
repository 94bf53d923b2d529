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

type poolRepository struct {
	db *sql.DB
}

func NewPoolRepository(db *sql.DB) repository.PoolRepository {
	return &poolRepository{db: db}
}

func (r *poolRepository) Create(ctx context.Context, pool *domain.Pool) error {
	if pool.ID == "" {
		pool.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO pools (id, creator_id, title, target_amount_usdc, collected_amount_usdc, status, deadline, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, NOW())
		 RETURNING created_at`,
		pool.ID, pool.CreatorID, pool.Title, pool.TargetAmountUSDC, pool.Status, pool.Deadline,
	).Scan(&pool.CreatedAt)
	if err != nil {
		return fmt.Errorf("pool insert failed: %w", err)
	}
	return nil
}

func (r *poolRepository) GetByID(ctx context.Context, id string) (*domain.Pool, error) {
	var p domain.Pool
	var deadline, completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, creator_id, title, target_amount_usdc, collected_amount_usdc, status, deadline, created_at, completed_at
		 FROM pools WHERE id = $1`, id,
	).Scan(&p.ID, &p.CreatorID, &p.Title, &p.TargetAmountUSDC, &p.CollectedAmountUSDC,
		&p.Status, &deadline, &p.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pool scan failed: %w", err)
	}
	if deadline.Valid {
		p.Deadline = &deadline.Time
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	return &p, nil
}

// Close cancels an ACTIVE pool. The compare-and-set on status means a close
// racing the goal-reached transition loses cleanly; collected funds become
// withdrawable either way.
func (r *poolRepository) Close(ctx context.Context, poolID string, creatorID int64) (*domain.Pool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pools SET status = $1, completed_at = NOW() WHERE id = $2 AND creator_id = $3 AND status = $4`,
		domain.PoolStatusCancelled, poolID, creatorID, domain.PoolStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("pool close failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		pool, err := r.GetByID(ctx, poolID)
		if err != nil {
			return nil, err
		}
		if pool.CreatorID != creatorID {
			return nil, domain.ErrUnauthorized
		}
		return nil, domain.ErrPoolClosed
	}
	return r.GetByID(ctx, poolID)
}

func (r *poolRepository) ListContributions(ctx context.Context, poolID string) ([]domain.PoolContribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pool_id, contributor_id, amount_usdc, transaction_id, created_at
		 FROM pool_contributions WHERE pool_id = $1 ORDER BY created_at`,
		poolID,
	)
	if err != nil {
		return nil, fmt.Errorf("contribution list failed: %w", err)
	}
	defer rows.Close()

	var contributions []domain.PoolContribution
	for rows.Next() {
		var c domain.PoolContribution
		if err := rows.Scan(&c.ID, &c.PoolID, &c.ContributorID, &c.AmountUSDC, &c.TransactionID, &c.CreatedAt); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}
