package service

import (
	"testing"

	"pathpay-backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestFeeCalculator(t *testing.T) {
	fees := feeCalculator{cfg: config.FeesConfig{
		TransferBps: 50,
		OfframpBps:  100,
		UtilityBps:  0,
		MinFeeUSDC:  10,
	}}

	t.Run("TransferBps", func(t *testing.T) {
		// 0.5% of 100_000 units
		assert.Equal(t, int64(500), fees.Transfer(100_000))
	})

	t.Run("OfframpBps", func(t *testing.T) {
		assert.Equal(t, int64(1000), fees.Offramp(100_000))
	})

	t.Run("MinFeeFloor", func(t *testing.T) {
		// 0.5% of 100 rounds to 0, floor kicks in.
		assert.Equal(t, int64(10), fees.Transfer(100))
		// Zero-bps utility fees still hit the floor.
		assert.Equal(t, int64(10), fees.Utility(100_000))
	})

	t.Run("NoFloorConfigured", func(t *testing.T) {
		free := feeCalculator{cfg: config.FeesConfig{TransferBps: 50}}
		assert.Equal(t, int64(0), free.Transfer(100))
	})
}
