package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/logger"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Code: code, Message: message})
}

// movementStatus is 201 for a fresh money movement and 200 when the
// idempotency guard replayed a stored one, so both responses carry the same
// body with a status that tells them apart.
func movementStatus(replayed bool) int {
	if replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

// respondDomainError maps sentinel errors to machine-readable codes.
// Anything unmapped is an internal error and is logged but not leaked.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "balance is insufficient for this amount plus fees")
	case errors.Is(err, domain.ErrDuplicateRequest):
		respondError(w, http.StatusConflict, "DUPLICATE_REQUEST", "this resource already exists")
	case errors.Is(err, domain.ErrRequestInProgress):
		respondError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is still being processed")
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		respondError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_MISMATCH", "idempotency key was reused with a different payload")
	case errors.Is(err, domain.ErrEscrowExpired):
		respondError(w, http.StatusGone, "ESCROW_EXPIRED", "this escrow payment has expired")
	case errors.Is(err, domain.ErrEscrowAlreadyResolved):
		respondError(w, http.StatusConflict, "ESCROW_ALREADY_RESOLVED", "this escrow payment has already been resolved")
	case errors.Is(err, domain.ErrEscrowNotCancellable):
		respondError(w, http.StatusUnprocessableEntity, "ESCROW_NOT_CANCELLABLE", "the cancellation window for this escrow has closed")
	case errors.Is(err, domain.ErrSplitAmountMismatch):
		respondError(w, http.StatusUnprocessableEntity, "SPLIT_AMOUNT_MISMATCH", "participant shares do not sum to the split total")
	case errors.Is(err, domain.ErrSplitAlreadyPaid):
		respondError(w, http.StatusConflict, "SPLIT_ALREADY_PAID", "this share has already been paid")
	case errors.Is(err, domain.ErrNotParticipant):
		respondError(w, http.StatusForbidden, "NOT_PARTICIPANT", "user is not a participant of this split")
	case errors.Is(err, domain.ErrPoolClosed):
		respondError(w, http.StatusUnprocessableEntity, "POOL_CLOSED", "this pool is not accepting contributions")
	case errors.Is(err, domain.ErrPoolNotWithdrawable):
		respondError(w, http.StatusUnprocessableEntity, "POOL_NOT_WITHDRAWABLE", "pool funds cannot be withdrawn")
	case errors.Is(err, domain.ErrBankAccountNotVerified):
		respondError(w, http.StatusUnprocessableEntity, "BANK_ACCOUNT_NOT_VERIFIED", "bank account must be verified before offramp")
	case errors.Is(err, domain.ErrSelfTransfer), errors.Is(err, domain.ErrInvalidAmount):
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "not allowed to perform this action")
	case errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrEscrowNotFound),
		errors.Is(err, domain.ErrBillSplitNotFound),
		errors.Is(err, domain.ErrPoolNotFound),
		errors.Is(err, domain.ErrBankAccountNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
