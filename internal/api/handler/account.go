package handler

import (
	"encoding/json"
	"net/http"

	"github.com/afripay/wallet-core/internal/models"
	"github.com/afripay/wallet-core/internal/service"
)

type AccountHandler struct {
	svc *service.WalletService
}

func NewAccountHandler(svc *service.WalletService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// CreateAccount provisions a wallet for the authenticated identity.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), identity, req.Currency)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, accountResponse(account))
}

// GetAccount returns the authenticated account with balances.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	account, err := h.svc.GetAccount(r.Context(), identity)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, accountResponse(account))
}

// RegisterDevice stores the caller's push token.
func (h *AccountHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	var req struct {
		DeviceToken string `json:"device_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	if err := h.svc.RegisterDevice(r.Context(), identity, req.DeviceToken); err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

func accountResponse(account *models.Account) map[string]any {
	return map[string]any{
		"id":             account.ID,
		"country":        account.Country,
		"currency":       account.Currency,
		"balance_micros": account.BalanceMicros,
		"loyalty_points": account.LoyaltyPoints,
		"created_at":     account.CreatedAt,
	}
}
