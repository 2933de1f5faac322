package handler

import (
	"encoding/json"
	"net/http"

	"github.com/afripay/wallet-core/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CardHandler struct {
	svc *service.WalletService
}

func NewCardHandler(svc *service.WalletService) *CardHandler {
	return &CardHandler{svc: svc}
}

// OrderCard charges the issuance fee and enqueues the order with the
// card issuer.
func (h *CardHandler) OrderCard(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	var req struct {
		Type                string `json:"type"`
		SpendingLimitMicros int64  `json:"spending_limit_micros"`
		Currency            string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	card, tx, err := h.svc.OrderCard(r.Context(), identity, req.Type, req.SpendingLimitMicros, req.Currency, requestDiscriminator(r))
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, map[string]any{
		"card":        card,
		"transaction": tx,
	})
}

// Freeze suspends an active card.
func (h *CardHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, true)
}

// Unfreeze reactivates a frozen card.
func (h *CardHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.setFrozen(w, r, false)
}

func (h *CardHandler) setFrozen(w http.ResponseWriter, r *http.Request, freeze bool) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/validation", "invalid card id")
		return
	}

	if err := h.svc.FreezeCard(r.Context(), identity, cardID, freeze); err != nil {
		RespondServiceError(w, r, err)
		return
	}
	status := "active"
	if freeze {
		status = "frozen"
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": status})
}
