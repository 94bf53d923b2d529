package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"pathpay-backend/internal/domain"
	"pathpay-backend/internal/service"
)

type participantPayload struct {
	UserID     int64 `json:"user_id"`
	AmountUSDC int64 `json:"amount_usdc,omitempty"`
	PercentBps int64 `json:"percent_bps,omitempty"`
}

type createSplitRequest struct {
	Title           string               `json:"title"`
	TotalAmountUSDC int64                `json:"total_amount_usdc"`
	SplitType       domain.SplitType     `json:"split_type"`
	Participants    []participantPayload `json:"participants"`
}

func (h *Handler) CreateBillSplit(w http.ResponseWriter, r *http.Request) {
	var req createSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}

	participants := make([]service.ParticipantInput, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, service.ParticipantInput{
			UserID:     p.UserID,
			AmountUSDC: p.AmountUSDC,
			PercentBps: p.PercentBps,
		})
	}

	split, err := h.splits.Create(r.Context(), userID(r), req.Title, req.TotalAmountUSDC, req.SplitType, participants)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, split)
}

type payShareResponse struct {
	Transaction    *domain.Transaction `json:"transaction"`
	SplitCompleted bool                `json:"split_completed"`
}

func (h *Handler) PayBillSplitShare(w http.ResponseWriter, r *http.Request) {
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

	outcome, err := h.splits.PayShare(r.Context(), idem, mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, movementStatus(outcome.Replayed), payShareResponse{
		Transaction:    outcome.Transaction,
		SplitCompleted: outcome.SplitCompleted,
	})
}

func (h *Handler) GetBillSplit(w http.ResponseWriter, r *http.Request) {
	split, err := h.splits.Get(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, split)
}

func (h *Handler) ListBillSplits(w http.ResponseWriter, r *http.Request) {
	splits, err := h.splits.ListByUser(r.Context(), userID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bill_splits": splits})
}

type createPoolRequest struct {
	Title            string  `json:"title"`
	TargetAmountUSDC int64   `json:"target_amount_usdc"`
	Deadline         *string `json:"deadline,omitempty"`
}

func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}

	pool, err := h.pools.Create(r.Context(), userID(r), req.Title, req.TargetAmountUSDC, req.Deadline)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, pool)
}

type contributeRequest struct {
	AmountUSDC int64 `json:"amount_usdc"`
}

type contributeResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	GoalReached bool                `json:"goal_reached"`
}

func (h *Handler) ContributeToPool(w http.ResponseWriter, r *http.Request) {
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

	var req contributeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed JSON body")
		return
	}

	outcome, err := h.pools.Contribute(r.Context(), idem, mux.Vars(r)["id"], req.AmountUSDC)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, movementStatus(outcome.Replayed), contributeResponse{
		Transaction: outcome.Transaction,
		GoalReached: outcome.GoalReached,
	})
}

func (h *Handler) WithdrawPool(w http.ResponseWriter, r *http.Request) {
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

	outcome, err := h.pools.Withdraw(r.Context(), idem, mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, movementStatus(outcome.Replayed), map[string]interface{}{"transaction": outcome.Transaction})
}

func (h *Handler) ClosePool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.pools.Close(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pool)
}

func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, contributions, err := h.pools.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pool":          pool,
		"contributions": contributions,
	})
}
