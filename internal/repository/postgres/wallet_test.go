package postgres

import (
	"context"
	"testing"
	"time"

	"pathpay-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestWalletRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewWalletRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		wallet := &domain.Wallet{
			UserID:       1,
			Phone:        "+2348012345678",
			ChainAddress: "0xabc",
		}

		mock.ExpectQuery("INSERT INTO wallets").
			WithArgs(wallet.UserID, wallet.Phone, int64(0), int64(0), int64(0), wallet.ChainAddress).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		err := repo.Create(ctx, wallet)
		assert.NoError(t, err)
		assert.Equal(t, now, wallet.CreatedAt)
	})

	t.Run("DuplicatePhone", func(t *testing.T) {
		wallet := &domain.Wallet{
			UserID:       2,
			Phone:        "+2348012345678",
			ChainAddress: "0xdef",
		}

		mock.ExpectQuery("INSERT INTO wallets").
			WithArgs(wallet.UserID, wallet.Phone, int64(0), int64(0), int64(0), wallet.ChainAddress).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, wallet)
		assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
	})
}

func TestWalletRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewWalletRepository(db)
	ctx := context.Background()

	walletRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"user_id", "phone", "available_usdc", "locked_in_escrow_usdc",
			"pending_incoming_usdc", "chain_address", "created_at", "updated_at",
		})
	}

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id").
			WithArgs(int64(1)).
			WillReturnRows(walletRows().AddRow(int64(1), "+2348012345678", int64(5000), int64(200), int64(0), "0xabc", now, now))

		wallet, err := repo.Get(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(5000), wallet.AvailableUSDC)
		assert.Equal(t, int64(5200), wallet.TotalUSDC())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id").
			WithArgs(int64(99)).
			WillReturnRows(walletRows())

		_, err := repo.Get(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	})

	t.Run("FindByPhone", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE phone").
			WithArgs("+2348012345678").
			WillReturnRows(walletRows().AddRow(int64(1), "+2348012345678", int64(5000), int64(0), int64(0), "0xabc", now, now))

		wallet, err := repo.FindByPhone(ctx, "+2348012345678")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), wallet.UserID)
	})

	t.Run("FindByPhoneNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE phone").
			WithArgs("+2348000000000").
			WillReturnRows(walletRows())

		_, err := repo.FindByPhone(ctx, "+2348000000000")
		assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	})
}
