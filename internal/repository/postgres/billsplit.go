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

type billSplitRepository struct {
	db *sql.DB
}

func NewBillSplitRepository(db *sql.DB) repository.BillSplitRepository {
	return &billSplitRepository{db: db}
}

// Create persists the split and all participant rows in one transaction so a
// split can never exist with a partial participant set.
func (r *billSplitRepository) Create(ctx context.Context, split *domain.BillSplit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	if split.ID == "" {
		split.ID = uuid.NewString()
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO bill_splits (id, organizer_id, title, total_amount_usdc, split_type, is_complete, created_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
		 RETURNING created_at`,
		split.ID, split.OrganizerID, split.Title, split.TotalAmountUSDC, split.SplitType,
	).Scan(&split.CreatedAt)
	if err != nil {
		return fmt.Errorf("bill split insert failed: %w", err)
	}

	for i := range split.Participants {
		p := &split.Participants[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.BillSplitID = split.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bill_split_participants (id, bill_split_id, user_id, amount_usdc, status)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.BillSplitID, p.UserID, p.AmountUSDC, p.Status,
		)
		if err != nil {
			return fmt.Errorf("participant insert failed: %w", err)
		}
	}
	return tx.Commit()
}

func (r *billSplitRepository) GetByID(ctx context.Context, id string) (*domain.BillSplit, error) {
	split, err := r.scanSplit(r.db.QueryRowContext(ctx,
		`SELECT id, organizer_id, title, total_amount_usdc, split_type, is_complete, created_at, completed_at
		 FROM bill_splits WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, split); err != nil {
		return nil, err
	}
	return split, nil
}

func (r *billSplitRepository) ListByUser(ctx context.Context, userID int64) ([]domain.BillSplit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT s.id, s.organizer_id, s.title, s.total_amount_usdc, s.split_type, s.is_complete, s.created_at, s.completed_at
		 FROM bill_splits s
		 LEFT JOIN bill_split_participants p ON p.bill_split_id = s.id
		 WHERE s.organizer_id = $1 OR p.user_id = $1
		 ORDER BY s.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("bill split list failed: %w", err)
	}
	defer rows.Close()

	var splits []domain.BillSplit
	for rows.Next() {
		split, err := r.scanSplit(rows)
		if err != nil {
			return nil, err
		}
		splits = append(splits, *split)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range splits {
		if err := r.loadParticipants(ctx, &splits[i]); err != nil {
			return nil, err
		}
	}
	return splits, nil
}

func (r *billSplitRepository) scanSplit(row rowScanner) (*domain.BillSplit, error) {
	var s domain.BillSplit
	var completedAt sql.NullTime
	err := row.Scan(&s.ID, &s.OrganizerID, &s.Title, &s.TotalAmountUSDC, &s.SplitType,
		&s.IsComplete, &s.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBillSplitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bill split scan failed: %w", err)
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

func (r *billSplitRepository) loadParticipants(ctx context.Context, split *domain.BillSplit) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, bill_split_id, user_id, amount_usdc, status, paid_at
		 FROM bill_split_participants WHERE bill_split_id = $1 ORDER BY user_id`,
		split.ID,
	)
	if err != nil {
		return fmt.Errorf("participant list failed: %w", err)
	}
	defer rows.Close()

	split.Participants = nil
	for rows.Next() {
		var p domain.BillSplitParticipant
		var paidAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.BillSplitID, &p.UserID, &p.AmountUSDC, &p.Status, &paidAt); err != nil {
			return err
		}
		if paidAt.Valid {
			p.PaidAt = &paidAt.Time
		}
		split.Participants = append(split.Participants, p)
	}
	return rows.Err()
}
