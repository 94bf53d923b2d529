package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/repository"
	"pathpay-backend/internal/service"
)

// Handler bundles the API's service dependencies.
type Handler struct {
	wallet    service.WalletService
	transfers service.TransferService
	escrows   service.EscrowService
	splits    service.BillSplitService
	pools     service.PoolService
	payments  service.PaymentsService
}

func NewHandler(
	wallet service.WalletService,
	transfers service.TransferService,
	escrows service.EscrowService,
	splits service.BillSplitService,
	pools service.PoolService,
	payments service.PaymentsService,
) *Handler {
	return &Handler{
		wallet:    wallet,
		transfers: transfers,
		escrows:   escrows,
		splits:    splits,
		pools:     pools,
		payments:  payments,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerWalletRequest struct {
	Phone string `json:"phone"`
}

func (h *Handler) RegisterWallet(w http.ResponseWriter, r *http.Request) {
	var req registerWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}
	if req.Phone == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "phone is required")
		return
	}

	wallet, err := h.wallet.Register(r.Context(), userID(r), req.Phone)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, wallet)
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallet.GetBalance(r.Context(), userID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.wallet.GetTransaction(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

type transactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TransactionFilter{
		Type:   domain.TransactionType(q.Get("type")),
		Status: domain.TransactionStatus(q.Get("status")),
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	txns, next, err := h.wallet.ListTransactions(r.Context(), userID(r), filter, q.Get("cursor"), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionPage{Transactions: txns, NextCursor: next})
}
