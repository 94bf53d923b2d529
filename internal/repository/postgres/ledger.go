package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
)

// ledgerRepository executes every balance-affecting operation as a single
// SQL transaction: idempotency reservation, wallet row locks (ascending
// user id, deadlock-free), bucket mutations and the transaction row status
// transition all commit or roll back together.
type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

const uniqueViolation = "23505"

// admit reserves the idempotency key inside tx. It returns the stored
// transaction ID when the key has already completed, and sentinel errors for
// in-flight duplicates and fingerprint mismatches.
func (r *ledgerRepository) admit(ctx context.Context, tx *sql.Tx, idem repository.Idempotency) (replayTxID string, err error) {
	if idem.Key == "" {
		return "", nil
	}

	var status, storedHash string
	var storedTxID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT status, request_hash, transaction_id FROM idempotency_keys WHERE caller_id = $1 AND key = $2`,
		idem.CallerID, idem.Key,
	).Scan(&status, &storedHash, &storedTxID)
	if err == nil {
		if storedHash != idem.RequestHash {
			return "", domain.ErrIdempotencyMismatch
		}
		if status != "COMPLETED" || !storedTxID.Valid {
			return "", domain.ErrRequestInProgress
		}
		return storedTxID.String, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("idempotency lookup failed: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO idempotency_keys (caller_id, key, request_hash, status, created_at) VALUES ($1, $2, $3, 'IN_PROGRESS', NOW())`,
		idem.CallerID, idem.Key, idem.RequestHash,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return "", domain.ErrRequestInProgress
		}
		return "", fmt.Errorf("idempotency reservation failed: %w", err)
	}
	return "", nil
}

// settle marks the idempotency key completed and binds it to the resulting
// transaction so retries replay the same outcome.
func (r *ledgerRepository) settle(ctx context.Context, tx *sql.Tx, idem repository.Idempotency, txID string) error {
	if idem.Key == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE idempotency_keys SET status = 'COMPLETED', transaction_id = $1 WHERE caller_id = $2 AND key = $3`,
		txID, idem.CallerID, idem.Key,
	)
	return err
}

type walletBalances struct {
	available int64
	locked    int64
	pending   int64
}

// lockWallet acquires the row lock serializing all mutations for one user.
func (r *ledgerRepository) lockWallet(ctx context.Context, tx *sql.Tx, userID int64) (*walletBalances, error) {
	var b walletBalances
	err := tx.QueryRowContext(ctx,
		`SELECT available_usdc, locked_in_escrow_usdc, pending_incoming_usdc FROM wallets WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&b.available, &b.locked, &b.pending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet lock failed: %w", err)
	}
	return &b, nil
}

// lockWalletPair locks two wallets in ascending user id order so racing
// A→B and B→A transfers never deadlock.
func (r *ledgerRepository) lockWalletPair(ctx context.Context, tx *sql.Tx, a, b int64) (*walletBalances, *walletBalances, error) {
	first, second := a, b
	if first > second {
		first, second = second, first
	}
	firstBal, err := r.lockWallet(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	secondBal, err := r.lockWallet(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == a {
		return firstBal, secondBal, nil
	}
	return secondBal, firstBal, nil
}

func (r *ledgerRepository) applyDelta(ctx context.Context, tx *sql.Tx, userID int64, bucket domain.BalanceBucket, delta int64) error {
	var column string
	switch bucket {
	case domain.BucketAvailable:
		column = "available_usdc"
	case domain.BucketLockedInEscrow:
		column = "locked_in_escrow_usdc"
	case domain.BucketPendingIncoming:
		column = "pending_incoming_usdc"
	default:
		return fmt.Errorf("unknown balance bucket %q", bucket)
	}
	query := fmt.Sprintf(`UPDATE wallets SET %s = %s + $1, updated_at = NOW() WHERE user_id = $2`, column, column)
	_, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("balance update failed: %w", err)
	}
	return nil
}

// insertTransaction writes the PENDING row for a movement about to be
// applied. The row only becomes COMPLETED in the same commit that moves the
// balances.
func (r *ledgerRepository) insertTransaction(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.Status = domain.TransactionStatusPending
	txn.BlockchainStatus = domain.BlockchainStatusUnsubmitted

	meta, err := domain.MarshalMetadata(txn.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, idempotency_key, sender_id, recipient_id, tx_type, status, amount_usdc, fee_usdc,
		  blockchain_status, settlement_required, settlement_attempts, related_entity_type, related_entity_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, NOW())`,
		txn.ID, txn.IdempotencyKey, txn.SenderID, txn.RecipientID, txn.Type, txn.Status,
		txn.AmountUSDC, txn.FeeUSDC, txn.BlockchainStatus, txn.Type.RequiresSettlement(),
		txn.RelatedType, txn.RelatedID, nullBytes(meta),
	)
	if err != nil {
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

func (r *ledgerRepository) completeTransaction(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) error {
	now := time.Now()
	_, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, completed_at = $2 WHERE id = $3`,
		domain.TransactionStatusCompleted, now, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("transaction completion failed: %w", err)
	}
	txn.Status = domain.TransactionStatusCompleted
	txn.CompletedAt = &now
	return nil
}

// failTransaction records a non-retryable failure without any balance
// effect. The idempotency key still settles so retries replay the failure.
func (r *ledgerRepository) failTransaction(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, reason string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, failure_reason = $2 WHERE id = $3`,
		domain.TransactionStatusFailed, reason, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("transaction failure update failed: %w", err)
	}
	txn.Status = domain.TransactionStatusFailed
	txn.FailureReason = reason
	return nil
}

// replayResult loads the stored outcome for an already-completed
// idempotency key, including the related entity state the first response
// carried.
func (r *ledgerRepository) replayResult(ctx context.Context, tx *sql.Tx, txID string) (*repository.LedgerResult, error) {
	txn, err := getTransactionRow(ctx, tx, txID)
	if err != nil {
		return nil, err
	}
	result := &repository.LedgerResult{Transaction: txn, Replayed: true}
	if txn.RelatedType == nil || txn.RelatedID == nil {
		return result, nil
	}
	switch *txn.RelatedType {
	case domain.RelatedEntityEscrow:
		escrow, err := getEscrowRow(ctx, tx, `SELECT `+escrowColumns+` FROM escrow_payments WHERE id = $1`, *txn.RelatedID)
		if err == nil {
			result.Escrow = escrow
		}
	case domain.RelatedEntityBillSplit:
		if txn.Type == domain.TransactionTypeBillSplitPay {
			_ = tx.QueryRowContext(ctx,
				`SELECT is_complete FROM bill_splits WHERE id = $1`, *txn.RelatedID,
			).Scan(&result.SplitCompleted)
		}
	case domain.RelatedEntityPool:
		if txn.Type == domain.TransactionTypePoolContribute {
			var status domain.PoolStatus
			if err := tx.QueryRowContext(ctx,
				`SELECT status FROM pools WHERE id = $1`, *txn.RelatedID,
			).Scan(&status); err == nil {
				result.PoolGoalReached = status != domain.PoolStatusActive
			}
		}
	}
	return result, nil
}

// finishReplay commits the read-only replay and surfaces a stored failure as
// the same sentinel the first attempt returned, so a retried request
// observes an identical outcome.
func (r *ledgerRepository) finishReplay(tx *sql.Tx, result *repository.LedgerResult) (*repository.LedgerResult, error) {
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	if result.Transaction.Status == domain.TransactionStatusFailed {
		return nil, replayFailure(result.Transaction.FailureReason)
	}
	return result, nil
}

func replayFailure(reason string) error {
	switch reason {
	case "INSUFFICIENT_FUNDS":
		return domain.ErrInsufficientFunds
	default:
		return fmt.Errorf("transaction failed: %s", reason)
	}
}

func (r *ledgerRepository) ExecuteTransfer(ctx context.Context, p repository.TransferParams) (*repository.LedgerResult, error) {
	if p.SenderID == p.RecipientID {
		return nil, domain.ErrSelfTransfer
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	sender, _, err := r.lockWalletPair(ctx, tx, p.SenderID, p.RecipientID)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &p.SenderID,
		RecipientID:    &p.RecipientID,
		Type:           domain.TransactionTypeSend,
		AmountUSDC:     p.AmountUSDC,
		FeeUSDC:        p.FeeUSDC,
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if sender.available < p.AmountUSDC+p.FeeUSDC {
		if err := r.failTransaction(ctx, tx, txn, "INSUFFICIENT_FUNDS"); err != nil {
			return nil, err
		}
		if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}

	if err := r.applyDelta(ctx, tx, p.SenderID, domain.BucketAvailable, -(p.AmountUSDC + p.FeeUSDC)); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, p.RecipientID, domain.BucketAvailable, p.AmountUSDC); err != nil {
		return nil, err
	}
	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn}, nil
}

func (r *ledgerRepository) CreateEscrowHold(ctx context.Context, p repository.EscrowHoldParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	sender, err := r.lockWallet(ctx, tx, p.SenderID)
	if err != nil {
		return nil, err
	}

	escrowID := uuid.NewString()
	relatedType := domain.RelatedEntityEscrow
	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &p.SenderID,
		Type:           domain.TransactionTypeEscrowSend,
		AmountUSDC:     p.AmountUSDC,
		FeeUSDC:        0,
		RelatedType:    &relatedType,
		RelatedID:      &escrowID,
		Metadata:       &domain.EscrowMetadata{EscrowID: escrowID, RecipientPhone: p.RecipientPhone},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if sender.available < p.AmountUSDC {
		if err := r.failTransaction(ctx, tx, txn, "INSUFFICIENT_FUNDS"); err != nil {
			return nil, err
		}
		if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}

	// The hold is a move from available into the escrow bucket; the claim
	// fee is charged to the recipient at claim time.
	if err := r.applyDelta(ctx, tx, p.SenderID, domain.BucketAvailable, -p.AmountUSDC); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, p.SenderID, domain.BucketLockedInEscrow, p.AmountUSDC); err != nil {
		return nil, err
	}

	escrow := &domain.EscrowPayment{
		ID:               escrowID,
		SenderID:         p.SenderID,
		RecipientPhone:   p.RecipientPhone,
		AmountUSDC:       p.AmountUSDC,
		FeeUSDC:          p.FeeUSDC,
		Status:           domain.EscrowStatusPending,
		ClaimTokenHash:   p.ClaimTokenHash,
		ExpiresAt:        p.ExpiresAt,
		CancellableUntil: p.CancellableUntil,
		TransactionID:    txn.ID,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO escrow_payments
		 (id, sender_id, recipient_phone, amount_usdc, fee_usdc, status, claim_token_hash,
		  expires_at, cancellable_until, transaction_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		escrow.ID, escrow.SenderID, escrow.RecipientPhone, escrow.AmountUSDC, escrow.FeeUSDC,
		escrow.Status, escrow.ClaimTokenHash, escrow.ExpiresAt, escrow.CancellableUntil, escrow.TransactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("escrow insert failed: %w", err)
	}

	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn, Escrow: escrow}, nil
}

func (r *ledgerRepository) ClaimEscrow(ctx context.Context, p repository.EscrowClaimParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	// The row lock makes claim and expiry-sweep mutually exclusive on this
	// record; the status flip below invalidates the token before funds move.
	escrow, err := getEscrowRow(ctx, tx,
		`SELECT `+escrowColumns+` FROM escrow_payments WHERE claim_token_hash = $1 FOR UPDATE`,
		p.ClaimTokenHash,
	)
	if err != nil {
		return nil, err
	}
	if escrow.Status != domain.EscrowStatusPending {
		return nil, domain.ErrEscrowAlreadyResolved
	}
	if time.Now().After(escrow.ExpiresAt) {
		return nil, domain.ErrEscrowExpired
	}

	if _, _, err := r.lockWalletPair(ctx, tx, escrow.SenderID, p.RecipientID); err != nil {
		return nil, err
	}

	relatedType := domain.RelatedEntityEscrow
	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &escrow.SenderID,
		RecipientID:    &p.RecipientID,
		Type:           domain.TransactionTypeEscrowClaim,
		AmountUSDC:     escrow.AmountUSDC,
		FeeUSDC:        escrow.FeeUSDC,
		RelatedType:    &relatedType,
		RelatedID:      &escrow.ID,
		Metadata:       &domain.EscrowMetadata{EscrowID: escrow.ID, RecipientPhone: escrow.RecipientPhone},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE escrow_payments SET status = $1, claimed_by = $2, resolved_at = $3 WHERE id = $4 AND status = $5`,
		domain.EscrowStatusClaimed, p.RecipientID, now, escrow.ID, domain.EscrowStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("escrow claim update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrEscrowAlreadyResolved
	}

	if err := r.applyDelta(ctx, tx, escrow.SenderID, domain.BucketLockedInEscrow, -escrow.AmountUSDC); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, p.RecipientID, domain.BucketAvailable, escrow.AmountUSDC-escrow.FeeUSDC); err != nil {
		return nil, err
	}

	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}

	escrow.Status = domain.EscrowStatusClaimed
	escrow.ClaimedBy = &p.RecipientID
	escrow.ResolvedAt = &now
	return &repository.LedgerResult{Transaction: txn, Escrow: escrow}, nil
}

func (r *ledgerRepository) CancelEscrow(ctx context.Context, escrowID string, actorID int64) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	escrow, err := getEscrowRow(ctx, tx,
		`SELECT `+escrowColumns+` FROM escrow_payments WHERE id = $1 FOR UPDATE`, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.SenderID != actorID {
		return nil, domain.ErrUnauthorized
	}
	if escrow.Status != domain.EscrowStatusPending {
		return nil, domain.ErrEscrowAlreadyResolved
	}
	if time.Now().After(escrow.CancellableUntil) {
		return nil, domain.ErrEscrowNotCancellable
	}

	txn, err := r.refundEscrow(ctx, tx, escrow, domain.EscrowStatusCancelled)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	escrow.Status = domain.EscrowStatusCancelled
	return &repository.LedgerResult{Transaction: txn, Escrow: escrow}, nil
}

// refundEscrow returns held funds to the sender and records the refund
// transaction. Caller holds the escrow row lock.
func (r *ledgerRepository) refundEscrow(ctx context.Context, tx *sql.Tx, escrow *domain.EscrowPayment, terminal domain.EscrowStatus) (*domain.Transaction, error) {
	if _, err := r.lockWallet(ctx, tx, escrow.SenderID); err != nil {
		return nil, err
	}

	relatedType := domain.RelatedEntityEscrow
	txn := &domain.Transaction{
		SenderID:    &escrow.SenderID,
		RecipientID: &escrow.SenderID,
		Type:        domain.TransactionTypeEscrowRefund,
		AmountUSDC:  escrow.AmountUSDC,
		RelatedType: &relatedType,
		RelatedID:   &escrow.ID,
		Metadata:    &domain.EscrowMetadata{EscrowID: escrow.ID, RecipientPhone: escrow.RecipientPhone},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE escrow_payments SET status = $1, resolved_at = NOW() WHERE id = $2 AND status = $3`,
		terminal, escrow.ID, domain.EscrowStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("escrow refund update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrEscrowAlreadyResolved
	}

	if err := r.applyDelta(ctx, tx, escrow.SenderID, domain.BucketLockedInEscrow, -escrow.AmountUSDC); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, escrow.SenderID, domain.BucketAvailable, escrow.AmountUSDC); err != nil {
		return nil, err
	}
	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ExpireEscrows sweeps pending escrows past their expiry, one SQL
// transaction per record. SKIP LOCKED plus the status recheck under lock
// make concurrent sweeps and claim races safe; re-running over an already
// expired record is a no-op.
func (r *ledgerRepository) ExpireEscrows(ctx context.Context, now time.Time, limit int) (int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM escrow_payments WHERE status = $1 AND expires_at <= $2 ORDER BY expires_at LIMIT $3`,
		domain.EscrowStatusPending, now, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("expired escrow scan failed: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		if err := r.expireOne(ctx, id, now); err != nil {
			if errors.Is(err, domain.ErrEscrowAlreadyResolved) || errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return swept, err
		}
		swept++
	}
	return swept, nil
}

func (r *ledgerRepository) expireOne(ctx context.Context, escrowID string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	escrow, err := getEscrowRow(ctx, tx,
		`SELECT `+escrowColumns+` FROM escrow_payments
		 WHERE id = $1 AND status = '`+string(domain.EscrowStatusPending)+`' FOR UPDATE SKIP LOCKED`,
		escrowID,
	)
	if err != nil {
		if errors.Is(err, domain.ErrEscrowNotFound) {
			return domain.ErrEscrowAlreadyResolved
		}
		return err
	}
	if !now.After(escrow.ExpiresAt) {
		return domain.ErrEscrowAlreadyResolved
	}
	if _, err := r.refundEscrow(ctx, tx, escrow, domain.EscrowStatusExpired); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ledgerRepository) PayBillSplitShare(ctx context.Context, p repository.SplitPayParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	// Lock the split row first: the completion check below must be
	// serialized so two simultaneous last payments cannot both miss it.
	var organizerID int64
	var isComplete bool
	err = tx.QueryRowContext(ctx,
		`SELECT organizer_id, is_complete FROM bill_splits WHERE id = $1 FOR UPDATE`, p.BillSplitID,
	).Scan(&organizerID, &isComplete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBillSplitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bill split lock failed: %w", err)
	}

	var participantID string
	var shareUSDC int64
	var participantStatus domain.ParticipantStatus
	err = tx.QueryRowContext(ctx,
		`SELECT id, amount_usdc, status FROM bill_split_participants WHERE bill_split_id = $1 AND user_id = $2 FOR UPDATE`,
		p.BillSplitID, p.PayerID,
	).Scan(&participantID, &shareUSDC, &participantStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("participant lock failed: %w", err)
	}
	if participantStatus.IsTerminal() {
		return nil, domain.ErrSplitAlreadyPaid
	}

	payer, _, err := r.lockWalletPair(ctx, tx, p.PayerID, organizerID)
	if err != nil {
		return nil, err
	}

	relatedType := domain.RelatedEntityBillSplit
	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &p.PayerID,
		RecipientID:    &organizerID,
		Type:           domain.TransactionTypeBillSplitPay,
		AmountUSDC:     shareUSDC,
		FeeUSDC:        p.FeeUSDC,
		RelatedType:    &relatedType,
		RelatedID:      &p.BillSplitID,
		Metadata:       &domain.BillSplitMetadata{BillSplitID: p.BillSplitID, ParticipantID: participantID},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if payer.available < shareUSDC+p.FeeUSDC {
		if err := r.failTransaction(ctx, tx, txn, "INSUFFICIENT_FUNDS"); err != nil {
			return nil, err
		}
		if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}

	if err := r.applyDelta(ctx, tx, p.PayerID, domain.BucketAvailable, -(shareUSDC + p.FeeUSDC)); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, organizerID, domain.BucketAvailable, shareUSDC); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE bill_split_participants SET status = $1, paid_at = NOW() WHERE id = $2`,
		domain.ParticipantStatusPaid, participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("participant update failed: %w", err)
	}

	// Completion is re-evaluated inside the paying transaction, under the
	// split row lock acquired above.
	completedNow := false
	if !isComplete {
		var remaining int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bill_split_participants WHERE bill_split_id = $1 AND status NOT IN ($2, $3)`,
			p.BillSplitID, domain.ParticipantStatusPaid, domain.ParticipantStatusDeclined,
		).Scan(&remaining)
		if err != nil {
			return nil, fmt.Errorf("completion check failed: %w", err)
		}
		if remaining == 0 {
			_, err = tx.ExecContext(ctx,
				`UPDATE bill_splits SET is_complete = TRUE, completed_at = NOW() WHERE id = $1`, p.BillSplitID)
			if err != nil {
				return nil, fmt.Errorf("split completion update failed: %w", err)
			}
			completedNow = true
		}
	}

	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn, SplitCompleted: completedNow}, nil
}

func (r *ledgerRepository) ContributeToPool(ctx context.Context, p repository.PoolContributeParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	var creatorID int64
	var target, collected int64
	var status domain.PoolStatus
	var deadline sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT creator_id, target_amount_usdc, collected_amount_usdc, status, deadline FROM pools WHERE id = $1 FOR UPDATE`,
		p.PoolID,
	).Scan(&creatorID, &target, &collected, &status, &deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pool lock failed: %w", err)
	}
	if status != domain.PoolStatusActive {
		return nil, domain.ErrPoolClosed
	}
	if deadline.Valid && time.Now().After(deadline.Time) {
		return nil, domain.ErrPoolClosed
	}

	contributor, _, err := r.lockWalletPair(ctx, tx, p.ContributorID, creatorID)
	if err != nil {
		return nil, err
	}

	relatedType := domain.RelatedEntityPool
	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &p.ContributorID,
		RecipientID:    &creatorID,
		Type:           domain.TransactionTypePoolContribute,
		AmountUSDC:     p.AmountUSDC,
		FeeUSDC:        p.FeeUSDC,
		RelatedType:    &relatedType,
		RelatedID:      &p.PoolID,
		Metadata:       &domain.PoolMetadata{PoolID: p.PoolID},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if contributor.available < p.AmountUSDC+p.FeeUSDC {
		if err := r.failTransaction(ctx, tx, txn, "INSUFFICIENT_FUNDS"); err != nil {
			return nil, err
		}
		if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}

	// Contributions are custodied in the creator's escrow bucket until the
	// pool is withdrawn, keeping system-wide value conserved.
	if err := r.applyDelta(ctx, tx, p.ContributorID, domain.BucketAvailable, -(p.AmountUSDC + p.FeeUSDC)); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, creatorID, domain.BucketLockedInEscrow, p.AmountUSDC); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE pools SET collected_amount_usdc = collected_amount_usdc + $1 WHERE id = $2`,
		p.AmountUSDC, p.PoolID,
	)
	if err != nil {
		return nil, fmt.Errorf("pool collected update failed: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pool_contributions (id, pool_id, contributor_id, amount_usdc, transaction_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.NewString(), p.PoolID, p.ContributorID, p.AmountUSDC, txn.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("contribution insert failed: %w", err)
	}

	// Compare-and-set on status so the goal-reached event fires exactly
	// once under concurrent contributions.
	goalReached := false
	if collected+p.AmountUSDC >= target {
		res, err := tx.ExecContext(ctx,
			`UPDATE pools SET status = $1, completed_at = NOW() WHERE id = $2 AND status = $3`,
			domain.PoolStatusCompleted, p.PoolID, domain.PoolStatusActive,
		)
		if err != nil {
			return nil, fmt.Errorf("pool completion update failed: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			goalReached = true
		}
	}

	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn, PoolGoalReached: goalReached}, nil
}

func (r *ledgerRepository) WithdrawPool(ctx context.Context, p repository.PoolWithdrawParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	var creatorID, collected int64
	var status domain.PoolStatus
	var withdrawnAt sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT creator_id, collected_amount_usdc, status, withdrawn_at FROM pools WHERE id = $1 FOR UPDATE`,
		p.PoolID,
	).Scan(&creatorID, &collected, &status, &withdrawnAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pool lock failed: %w", err)
	}
	if creatorID != p.CreatorID {
		return nil, domain.ErrUnauthorized
	}
	if status == domain.PoolStatusActive || withdrawnAt.Valid || collected == 0 {
		return nil, domain.ErrPoolNotWithdrawable
	}

	if _, err := r.lockWallet(ctx, tx, creatorID); err != nil {
		return nil, err
	}

	relatedType := domain.RelatedEntityPool
	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &creatorID,
		RecipientID:    &creatorID,
		Type:           domain.TransactionTypePoolWithdraw,
		AmountUSDC:     collected,
		RelatedType:    &relatedType,
		RelatedID:      &p.PoolID,
		Metadata:       &domain.PoolMetadata{PoolID: p.PoolID},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := r.applyDelta(ctx, tx, creatorID, domain.BucketLockedInEscrow, -collected); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, creatorID, domain.BucketAvailable, collected); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE pools SET withdrawn_at = NOW() WHERE id = $1`, p.PoolID)
	if err != nil {
		return nil, fmt.Errorf("pool withdraw update failed: %w", err)
	}

	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn}, nil
}

func (r *ledgerRepository) RecordOnramp(ctx context.Context, p repository.OnrampParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	if _, err := r.lockWallet(ctx, tx, p.UserID); err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		RecipientID:    &p.UserID,
		Type:           domain.TransactionTypeOnramp,
		AmountUSDC:     p.AmountUSDC,
		Metadata:       &domain.RampMetadata{Provider: p.Provider, ProviderRef: p.ProviderRef},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.applyDelta(ctx, tx, p.UserID, domain.BucketAvailable, p.AmountUSDC); err != nil {
		return nil, err
	}
	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn}, nil
}

func (r *ledgerRepository) ExecuteOfframp(ctx context.Context, p repository.OfframpParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	var verified bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_verified FROM bank_accounts WHERE id = $1 AND user_id = $2`,
		p.BankAccountID, p.UserID,
	).Scan(&verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBankAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bank account lookup failed: %w", err)
	}
	if !verified {
		return nil, domain.ErrBankAccountNotVerified
	}

	wallet, err := r.lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	relatedType := domain.RelatedEntityBankAccount
	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &p.UserID,
		Type:           domain.TransactionTypeOfframp,
		AmountUSDC:     p.AmountUSDC,
		FeeUSDC:        p.FeeUSDC,
		RelatedType:    &relatedType,
		RelatedID:      &p.BankAccountID,
		Metadata:       &domain.RampMetadata{Provider: p.Provider, ProviderRef: p.ProviderRef, BankAccountID: p.BankAccountID},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if wallet.available < p.AmountUSDC+p.FeeUSDC {
		if err := r.failTransaction(ctx, tx, txn, "INSUFFICIENT_FUNDS"); err != nil {
			return nil, err
		}
		if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}

	if err := r.applyDelta(ctx, tx, p.UserID, domain.BucketAvailable, -(p.AmountUSDC + p.FeeUSDC)); err != nil {
		return nil, err
	}
	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn}, nil
}

func (r *ledgerRepository) PurchaseUtility(ctx context.Context, p repository.UtilityPurchaseParams) (*repository.LedgerResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	replayID, err := r.admit(ctx, tx, p.Idempotency)
	if err != nil {
		return nil, err
	}
	if replayID != "" {
		result, err := r.replayResult(ctx, tx, replayID)
		if err != nil {
			return nil, err
		}
		return r.finishReplay(tx, result)
	}

	wallet, err := r.lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		IdempotencyKey: optionalKey(p.Idempotency.Key),
		SenderID:       &p.UserID,
		Type:           p.Type,
		AmountUSDC:     p.AmountUSDC,
		FeeUSDC:        p.FeeUSDC,
		Metadata:       &domain.UtilityMetadata{Provider: p.Provider, CustomerRef: p.CustomerRef},
	}
	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if wallet.available < p.AmountUSDC+p.FeeUSDC {
		if err := r.failTransaction(ctx, tx, txn, "INSUFFICIENT_FUNDS"); err != nil {
			return nil, err
		}
		if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}

	if err := r.applyDelta(ctx, tx, p.UserID, domain.BucketAvailable, -(p.AmountUSDC + p.FeeUSDC)); err != nil {
		return nil, err
	}
	if err := r.completeTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.settle(ctx, tx, p.Idempotency, txn.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return &repository.LedgerResult{Transaction: txn}, nil
}

func optionalKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
