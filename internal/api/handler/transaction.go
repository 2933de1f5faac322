package handler

import (
	"net/http"
	"strconv"

	"github.com/afripay/wallet-core/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type TransactionHandler struct {
	svc *service.WalletService
}

func NewTransactionHandler(svc *service.WalletService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// Get returns one of the caller's transactions. Asynchronous settlement
// outcomes are observed here.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/validation", "invalid transaction id")
		return
	}

	tx, err := h.svc.GetTransaction(r.Context(), identity, id)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}

// List pages through the caller's transactions, newest first.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(r)
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/missing-identity", "missing identity")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.svc.ListTransactions(r.Context(), identity, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}
