package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/service"
)

type sendRequest struct {
	RecipientID int64  `json:"recipient_id,omitempty"`
	Phone       string `json:"phone,omitempty"`
	AmountUSDC  int64  `json:"amount_usdc"`
}

// sendResponse mirrors SendOutcome on the wire. The claim token appears
// exactly once, on the response that created the escrow hold.
type sendResponse struct {
	Transaction *domain.Transaction   `json:"transaction"`
	Escrow      *domain.EscrowPayment `json:"escrow,omitempty"`
	ClaimToken  string                `json:"claim_token,omitempty"`
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
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

	var req sendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}
	if req.AmountUSDC <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "amount must be positive")
		return
	}

	outcome, err := h.transfers.SendToUser(r.Context(), idem, req.RecipientID, req.AmountUSDC)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOutcome(w, outcome)
}

func (h *Handler) CreatePhoneTransfer(w http.ResponseWriter, r *http.Request) {
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

	var req sendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}
	if req.Phone == "" || req.AmountUSDC <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "phone and a positive amount are required")
		return
	}

	outcome, err := h.transfers.SendToPhone(r.Context(), idem, req.Phone, req.AmountUSDC)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOutcome(w, outcome)
}

// respondOutcome writes 201 for a fresh movement and 200 for an idempotent
// replay of a previous one.
func respondOutcome(w http.ResponseWriter, outcome *service.SendOutcome) {
	respondJSON(w, movementStatus(outcome.Replayed), sendResponse{
		Transaction: outcome.Transaction,
		Escrow:      outcome.Escrow,
		ClaimToken:  outcome.ClaimToken,
	})
}

type claimRequest struct {
	ClaimToken string `json:"claim_token"`
}

func (h *Handler) ClaimEscrow(w http.ResponseWriter, r *http.Request) {
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

	var req claimRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}
	if req.ClaimToken == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "claim token is required")
		return
	}

	outcome, err := h.escrows.Claim(r.Context(), idem, req.ClaimToken)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondOutcome(w, outcome)
}

func (h *Handler) CancelEscrow(w http.ResponseWriter, r *http.Request) {
	escrow, err := h.escrows.Cancel(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, escrow)
}

func (h *Handler) ListEscrows(w http.ResponseWriter, r *http.Request) {
	escrows, err := h.escrows.ListSent(r.Context(), userID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"escrows": escrows})
}
