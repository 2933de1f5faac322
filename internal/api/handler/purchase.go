package handler

import (
	"encoding/json"
	"net/http"

	"github.com/afripay/wallet-core/internal/service"
)

type PurchaseHandler struct {
	svc *service.WalletService
}

func NewPurchaseHandler(svc *service.WalletService) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

// Purchase debits the wallet and enqueues a utility, subscription or
// betting-fund payment with the named provider.
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	var req struct {
		Kind         string          `json:"kind"`
		AmountMicros int64           `json:"amount_micros"`
		Provider     string          `json:"provider"`
		Currency     string          `json:"currency"`
		Details      json.RawMessage `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	tx, err := h.svc.PurchaseUtility(r.Context(), identity, req.Kind, req.AmountMicros, req.Provider, req.Currency, req.Details, requestDiscriminator(r))
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, tx)
}
