package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/afripay/wallet-core/internal/api/middleware"
	"github.com/afripay/wallet-core/internal/api/problem"
	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondServiceError maps service-layer errors onto problem responses.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *models.ValidationError
	switch {
	case errors.As(err, &validation):
		RespondError(w, r, http.StatusBadRequest, "request/validation", validation.Error())
	case errors.Is(err, models.ErrDuplicateRequest):
		RespondError(w, r, http.StatusConflict, "request/duplicate", "an identical request is already in flight")
	case errors.Is(err, models.ErrInsufficientFunds):
		RespondError(w, r, http.StatusBadRequest, "wallet/insufficient-funds", "insufficient wallet balance")
	case errors.Is(err, models.ErrInsufficientLoyalty):
		RespondError(w, r, http.StatusBadRequest, "wallet/insufficient-loyalty", "insufficient loyalty points")
	case errors.Is(err, models.ErrFraudHold):
		RespondError(w, r, http.StatusForbidden, "fraud/account-flagged", "account flagged for review")
	case errors.Is(err, models.ErrAccountNotFound):
		RespondError(w, r, http.StatusNotFound, "account/not-found", "account not found")
	case errors.Is(err, models.ErrTransactionNotFound):
		RespondError(w, r, http.StatusNotFound, "transaction/not-found", "transaction not found")
	case errors.Is(err, models.ErrCardNotFound):
		RespondError(w, r, http.StatusNotFound, "card/not-found", "card not found")
	case errors.Is(err, models.ErrCardCancelled):
		RespondError(w, r, http.StatusConflict, "card/cancelled", "card is cancelled")
	default:
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func requestIdentity(r *http.Request) (domain.Identity, bool) {
	return middleware.IdentityFromContext(r.Context())
}

func requestDiscriminator(r *http.Request) string {
	return middleware.IdempotencyKeyFromContext(r.Context())
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
