package service

import "pathpay-backend/internal/config"

// feeCalculator derives the fee for a movement from configured basis points,
// never below the configured floor. Fees are charged on top of the principal.
type feeCalculator struct {
	cfg config.FeesConfig
}

func (f feeCalculator) forBps(bps int, amountUSDC int64) int64 {
	fee := amountUSDC * int64(bps) / 10000
	if fee < f.cfg.MinFeeUSDC {
		fee = f.cfg.MinFeeUSDC
	}
	return fee
}

func (f feeCalculator) Transfer(amountUSDC int64) int64 {
	return f.forBps(f.cfg.TransferBps, amountUSDC)
}

func (f feeCalculator) Offramp(amountUSDC int64) int64 {
	return f.forBps(f.cfg.OfframpBps, amountUSDC)
}

func (f feeCalculator) Utility(amountUSDC int64) int64 {
	return f.forBps(f.cfg.UtilityBps, amountUSDC)
}
