package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"pathpay-backend/internal/domain"
)

type rampRequest struct {
	AmountUSDC    int64  `json:"amount_usdc"`
	BankAccountID string `json:"bank_account_id,omitempty"`
	Provider      string `json:"provider"`
	ProviderRef   string `json:"provider_ref"`
}

func (h *Handler) CreateOnramp(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "stream read error")
		return
	}
	idem, ok := idempotencyFromRequest(r, body)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing Idempotency-Key header")
		return
	}

	var req rampRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}

	outcome, err := h.payments.Onramp(r.Context(), idem, req.AmountUSDC, req.Provider, req.ProviderRef)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, movementStatus(outcome.Replayed), map[string]interface{}{"transaction": outcome.Transaction})
}

func (h *Handler) CreateOfframp(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "stream read error")
		return
	}
	idem, ok := idempotencyFromRequest(r, body)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing Idempotency-Key header")
		return
	}

	var req rampRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}

	outcome, err := h.payments.Offramp(r.Context(), idem, req.AmountUSDC, req.BankAccountID, req.Provider, req.ProviderRef)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, movementStatus(outcome.Replayed), map[string]interface{}{"transaction": outcome.Transaction})
}

type purchaseRequest struct {
	Type        domain.TransactionType `json:"type"`
	AmountUSDC  int64                  `json:"amount_usdc"`
	Provider    string                 `json:"provider"`
	CustomerRef string                 `json:"customer_ref"`
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "stream read error")
		return
	}
	idem, ok := idempotencyFromRequest(r, body)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing Idempotency-Key header")
		return
	}

	var req purchaseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}

	outcome, err := h.payments.PurchaseUtility(r.Context(), idem, req.Type, req.AmountUSDC, req.Provider, req.CustomerRef)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, movementStatus(outcome.Replayed), map[string]interface{}{"transaction": outcome.Transaction})
}

type bankAccountRequest struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	AccountName   string `json:"account_name"`
	IsDefault     bool   `json:"is_default"`
}

func (h *Handler) AddBankAccount(w http.ResponseWriter, r *http.Request) {
	var req bankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}
	if req.AccountNumber == "" || req.BankCode == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "account number and bank code are required")
		return
	}

	account, err := h.payments.AddBankAccount(r.Context(), userID(r), req.AccountNumber, req.BankCode, req.AccountName, req.IsDefault)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.payments.ListBankAccounts(r.Context(), userID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bank_accounts": accounts})
}

func (h *Handler) VerifyBankAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.payments.VerifyBankAccount(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}
