package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"pathpay-backend/internal/config"
	"pathpay-backend/internal/logger"
)

type alertService struct {
	apiKey    string
	fromEmail string
	fromName  string
	opsEmail  string
}

func NewAlertService(cfg config.AlertsConfig) AlertService {
	return &alertService{
		apiKey:    cfg.SendGridAPIKey,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		opsEmail:  cfg.OpsEmail,
	}
}

// SendSettlementFailureAlert pages the operations inbox about a transaction
// that exhausted its on-chain submission attempts. The ledger effect of the
// transaction stays committed; this is a call for manual review.
func (s *alertService) SendSettlementFailureAlert(ctx context.Context, txID, reason string) error {
	logger.ExternalServiceCall("sendgrid", "SendSettlementFailureAlert", "transaction_id", txID)

	if s.apiKey == "" || s.opsEmail == "" {
		logger.Warn("settlement failure alert dropped, alerts not configured", "transaction_id", txID)
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("Operations", s.opsEmail)

	subject := fmt.Sprintf("[pathpay] settlement failed for transaction %s", txID)
	body := fmt.Sprintf(
		"Transaction %s could not be settled on-chain.\n\nReason: %s\n\nThe ledger entry remains committed and the transaction is parked with blockchain status FAILED. Manual reconciliation is required.",
		txID, reason,
	)
	message := mail.NewSingleEmail(from, subject, recipient, body, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	logger.ExternalServiceResult("sendgrid", "SendSettlementFailureAlert", err)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
