package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pathpay-backend/internal/security"
)

// NewRouter wires all routes. Health and metrics are unauthenticated;
// everything under /v1 requires a bearer token.
func NewRouter(h *Handler, tokens security.TokenManager) *mux.Router {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(AuthMiddleware(tokens))

	// Wallet
	api.HandleFunc("/wallet", h.RegisterWallet).Methods(http.MethodPost)
	api.HandleFunc("/wallet", h.GetWallet).Methods(http.MethodGet)

	// Transfers
	api.HandleFunc("/transfers", h.CreateTransfer).Methods(http.MethodPost)
	api.HandleFunc("/transfers/phone", h.CreatePhoneTransfer).Methods(http.MethodPost)

	// Escrows
	api.HandleFunc("/escrows", h.ListEscrows).Methods(http.MethodGet)
	api.HandleFunc("/escrows/claim", h.ClaimEscrow).Methods(http.MethodPost)
	api.HandleFunc("/escrows/{id}/cancel", h.CancelEscrow).Methods(http.MethodPost)

	// Bill splits
	api.HandleFunc("/bill-splits", h.CreateBillSplit).Methods(http.MethodPost)
	api.HandleFunc("/bill-splits", h.ListBillSplits).Methods(http.MethodGet)
	api.HandleFunc("/bill-splits/{id}", h.GetBillSplit).Methods(http.MethodGet)
	api.HandleFunc("/bill-splits/{id}/pay", h.PayBillSplitShare).Methods(http.MethodPost)

	// Pools
	api.HandleFunc("/pools", h.CreatePool).Methods(http.MethodPost)
	api.HandleFunc("/pools/{id}", h.GetPool).Methods(http.MethodGet)
	api.HandleFunc("/pools/{id}/contributions", h.ContributeToPool).Methods(http.MethodPost)
	api.HandleFunc("/pools/{id}/withdraw", h.WithdrawPool).Methods(http.MethodPost)
	api.HandleFunc("/pools/{id}/close", h.ClosePool).Methods(http.MethodPost)

	// Ramps and purchases
	api.HandleFunc("/onramps", h.CreateOnramp).Methods(http.MethodPost)
	api.HandleFunc("/offramps", h.CreateOfframp).Methods(http.MethodPost)
	api.HandleFunc("/purchases", h.CreatePurchase).Methods(http.MethodPost)

	// Bank accounts
	api.HandleFunc("/bank-accounts", h.AddBankAccount).Methods(http.MethodPost)
	api.HandleFunc("/bank-accounts", h.ListBankAccounts).Methods(http.MethodGet)
	api.HandleFunc("/bank-accounts/{id}/verify", h.VerifyBankAccount).Methods(http.MethodPost)

	// Transactions
	api.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)

	return r
}
