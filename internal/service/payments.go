package service

import (
	"context"
	"fmt"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
	"pathpay-backend/internal/repository"
)

type paymentsService struct {
	ledgerRepo repository.LedgerRepository
	bankRepo   repository.BankAccountRepository
	fees       feeCalculator
}

func NewPaymentsService(
	ledgerRepo repository.LedgerRepository,
	bankRepo repository.BankAccountRepository,
	feesCfg config.FeesConfig,
) PaymentsService {
	return &paymentsService{
		ledgerRepo: ledgerRepo,
		bankRepo:   bankRepo,
		fees:       feeCalculator{cfg: feesCfg},
	}
}

// Onramp credits a wallet after the fiat provider confirmed collection.
// ProviderRef ties the ledger row back to the provider's transaction.
func (s *paymentsService) Onramp(ctx context.Context, idem repository.Idempotency, amountUSDC int64, provider, providerRef string) (*TxOutcome, error) {
	logger.EnterMethod("PaymentsService.Onramp", "user_id", idem.CallerID, "provider", provider)

	if amountUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if provider == "" || providerRef == "" {
		return nil, fmt.Errorf("provider and provider reference are required")
	}

	result, err := s.ledgerRepo.RecordOnramp(ctx, repository.OnrampParams{
		Idempotency: idem,
		UserID:      idem.CallerID,
		AmountUSDC:  amountUSDC,
		Provider:    provider,
		ProviderRef: providerRef,
	})
	if err != nil {
		logger.ExitMethodWithError("PaymentsService.Onramp", err)
		return nil, err
	}

	logger.ExitMethod("PaymentsService.Onramp", "transaction_id", result.Transaction.ID)
	return &TxOutcome{Transaction: result.Transaction, Replayed: result.Replayed}, nil
}

func (s *paymentsService) Offramp(ctx context.Context, idem repository.Idempotency, amountUSDC int64, bankAccountID, provider, providerRef string) (*TxOutcome, error) {
	logger.EnterMethod("PaymentsService.Offramp", "user_id", idem.CallerID, "bank_account_id", bankAccountID)

	if amountUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if bankAccountID == "" {
		return nil, domain.ErrBankAccountNotFound
	}

	result, err := s.ledgerRepo.ExecuteOfframp(ctx, repository.OfframpParams{
		Idempotency:   idem,
		UserID:        idem.CallerID,
		AmountUSDC:    amountUSDC,
		FeeUSDC:       s.fees.Offramp(amountUSDC),
		BankAccountID: bankAccountID,
		Provider:      provider,
		ProviderRef:   providerRef,
	})
	if err != nil {
		logger.ExitMethodWithError("PaymentsService.Offramp", err)
		return nil, err
	}

	logger.ExitMethod("PaymentsService.Offramp", "transaction_id", result.Transaction.ID)
	return &TxOutcome{Transaction: result.Transaction, Replayed: result.Replayed}, nil
}

func (s *paymentsService) PurchaseUtility(ctx context.Context, idem repository.Idempotency, txType domain.TransactionType, amountUSDC int64, provider, customerRef string) (*TxOutcome, error) {
	logger.EnterMethod("PaymentsService.PurchaseUtility", "user_id", idem.CallerID, "tx_type", txType)

	switch txType {
	case domain.TransactionTypeAirtime, domain.TransactionTypeData,
		domain.TransactionTypeElectricity, domain.TransactionTypeCable:
	default:
		return nil, fmt.Errorf("unsupported utility type %q", txType)
	}
	if amountUSDC <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if provider == "" || customerRef == "" {
		return nil, fmt.Errorf("provider and customer reference are required")
	}

	result, err := s.ledgerRepo.PurchaseUtility(ctx, repository.UtilityPurchaseParams{
		Idempotency: idem,
		UserID:      idem.CallerID,
		Type:        txType,
		AmountUSDC:  amountUSDC,
		FeeUSDC:     s.fees.Utility(amountUSDC),
		Provider:    provider,
		CustomerRef: customerRef,
	})
	if err != nil {
		logger.ExitMethodWithError("PaymentsService.PurchaseUtility", err)
		return nil, err
	}

	logger.ExitMethod("PaymentsService.PurchaseUtility", "transaction_id", result.Transaction.ID)
	return &TxOutcome{Transaction: result.Transaction, Replayed: result.Replayed}, nil
}

func (s *paymentsService) AddBankAccount(ctx context.Context, userID int64, accountNumber, bankCode, accountName string, isDefault bool) (*domain.BankAccount, error) {
	logger.EnterMethod("PaymentsService.AddBankAccount", "user_id", userID)

	if accountNumber == "" || bankCode == "" {
		return nil, fmt.Errorf("account number and bank code are required")
	}

	account := &domain.BankAccount{
		UserID:        userID,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		AccountName:   accountName,
		IsDefault:     isDefault,
		Status:        domain.BankAccountStatusPending,
	}
	if err := s.bankRepo.Create(ctx, account); err != nil {
		logger.ExitMethodWithError("PaymentsService.AddBankAccount", err)
		return nil, err
	}

	logger.ExitMethod("PaymentsService.AddBankAccount", "bank_account_id", account.ID)
	return account, nil
}

func (s *paymentsService) ListBankAccounts(ctx context.Context, userID int64) ([]domain.BankAccount, error) {
	return s.bankRepo.ListByUser(ctx, userID)
}

// VerifyBankAccount marks an account usable for offramps. Verification
// evidence comes from the ramp provider's callback.
func (s *paymentsService) VerifyBankAccount(ctx context.Context, userID int64, bankAccountID string) error {
	account, err := s.bankRepo.GetByID(ctx, bankAccountID)
	if err != nil {
		return err
	}
	if account.UserID != userID {
		return domain.ErrBankAccountNotFound
	}
	return s.bankRepo.MarkVerified(ctx, bankAccountID)
}
