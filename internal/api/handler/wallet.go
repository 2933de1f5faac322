package handler

import (
	"encoding/json"
	"net/http"

	"github.com/afripay/wallet-core/internal/service"
	"github.com/google/uuid"
)

type WalletHandler struct {
	svc *service.WalletService
}

func NewWalletHandler(svc *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// TopUp enqueues a wallet top-up. The balance is credited only after the
// payment gateway confirms settlement.
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	var req struct {
		AmountMicros int64  `json:"amount_micros"`
		Currency     string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	tx, err := h.svc.TopUpWallet(r.Context(), identity, req.AmountMicros, req.Currency, requestDiscriminator(r))
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, tx)
}

// Transfer moves funds to another wallet.
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	var req struct {
		ToAccountID  string `json:"to_account_id"`
		AmountMicros int64  `json:"amount_micros"`
		Currency     string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/validation", "invalid to_account_id")
		return
	}

	tx, err := h.svc.TransferFunds(r.Context(), identity, toID, req.AmountMicros, req.Currency, requestDiscriminator(r))
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, tx)
}

// RedeemLoyalty swaps loyalty points for wallet balance.
func (h *WalletHandler) RedeemLoyalty(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	var req struct {
		Points int64 `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	tx, err := h.svc.RedeemLoyaltyPoints(r.Context(), identity, req.Points)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, tx)
}
