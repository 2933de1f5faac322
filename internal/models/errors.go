package models

import "errors"

// Synchronous request-path errors. Asynchronous settlement failures never
// surface here; they are only observable through transaction status reads
// and notifications.
var (
	ErrInsufficientFunds   = errors.New("insufficient wallet balance")
	ErrInsufficientLoyalty = errors.New("insufficient loyalty points")
	ErrDuplicateRequest    = errors.New("request already in progress")
	ErrFraudHold           = errors.New("transaction flagged for review")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCardNotFound        = errors.New("card not found")
	ErrCardCancelled       = errors.New("card is cancelled")
)

// ValidationError marks a synchronously rejected request with no side
// effects (bad amount, unsupported country or currency).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Validation builds a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
