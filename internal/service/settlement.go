package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/gateway"
	"github.com/afripay/wallet-core/internal/models"
	"github.com/afripay/wallet-core/internal/observability"
	"github.com/afripay/wallet-core/internal/tasklog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settlement consumes lane envelopes and finalizes their transactions
// against the owning provider. Handle is safe to call more than once for
// the same envelope: terminal transactions are acknowledged without any
// side effect, and every side effect is gated on winning the
// pending-to-terminal status swap.
type Settlement struct {
	store     Store
	providers *gateway.Registry
	notifier  Notifier
}

func NewSettlement(store Store, providers *gateway.Registry, notifier Notifier) *Settlement {
	return &Settlement{
		store:     store,
		providers: providers,
		notifier:  notifier,
	}
}

// Handle implements tasklog.Handler. A nil return acknowledges the
// envelope; an error leaves it pending for redelivery.
func (s *Settlement) Handle(ctx context.Context, env tasklog.Envelope) error {
	tx, err := s.store.GetTransaction(ctx, env.TransactionID)
	if err != nil {
		if errors.Is(err, models.ErrTransactionNotFound) {
			zap.L().Warn("envelope references unknown transaction",
				zap.String("transaction_id", env.TransactionID.String()))
			return nil
		}
		return fmt.Errorf("load transaction: %w", err)
	}
	if tx.Status != domain.TxStatusPending {
		return nil
	}

	provider := s.providers.ForKind(env.Kind)
	ref, settleErr := provider.Settle(ctx, env.Kind, env.AmountMicros, env.Currency, env.Details)
	if settleErr != nil {
		if errors.Is(settleErr, context.Canceled) || errors.Is(settleErr, context.DeadlineExceeded) {
			return settleErr
		}
		return s.fail(ctx, env, tx, settleErr)
	}
	return s.complete(ctx, env, tx, ref)
}

func (s *Settlement) complete(ctx context.Context, env tasklog.Envelope, tx *models.Transaction, ref string) error {
	won, err := s.store.SettleTransaction(ctx, tx.ID, domain.TxStatusCompleted, ref)
	if err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	if !won {
		// Lost the swap to a redelivery or a fraud hold reset; nothing
		// more to do for this delivery.
		return nil
	}
	if err := s.store.RecordStatusChange(ctx, tx.ID, domain.TxStatusPending, domain.TxStatusCompleted, "settled"); err != nil {
		zap.L().Error("audit write failed", zap.String("transaction_id", tx.ID.String()), zap.Error(err))
	}

	switch env.Kind {
	case domain.KindTopUp:
		if err := s.store.CreditBalance(ctx, env.AccountID, env.AmountMicros, 0); err != nil {
			// The transaction is already completed; the credit must not
			// be lost. Surface loudly for reconciliation.
			zap.L().Error("top-up credit failed after completion",
				zap.String("transaction_id", tx.ID.String()),
				zap.Int64("amount_micros", env.AmountMicros),
				zap.Error(err))
			return fmt.Errorf("credit top-up: %w", err)
		}
	case domain.KindCardOrder:
		if env.CardID != uuid.Nil {
			if err := s.store.SetCardStatus(ctx, env.CardID, domain.CardStatusActive); err != nil {
				zap.L().Error("card activation failed",
					zap.String("card_id", env.CardID.String()), zap.Error(err))
			}
		}
	}

	observability.IncrementSettlement(env.Kind, "completed")
	s.notifier.Notify(ctx, env.AccountID, completionMessage(env))
	return nil
}

func (s *Settlement) fail(ctx context.Context, env tasklog.Envelope, tx *models.Transaction, cause error) error {
	zap.L().Warn("provider settlement failed",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("kind", env.Kind),
		zap.Error(cause))

	// A failed card order cancels the card but leaves the fee transaction
	// pending so the next delivery can retry the issuer.
	if env.Kind == domain.KindCardOrder {
		if env.CardID != uuid.Nil {
			if err := s.store.SetCardStatus(ctx, env.CardID, domain.CardStatusCancelled); err != nil {
				return fmt.Errorf("cancel card: %w", err)
			}
		}
		observability.IncrementSettlement(env.Kind, "card_cancelled")
		s.notifier.Notify(ctx, env.AccountID, "Your card order could not be completed. The card has been cancelled.")
		return nil
	}

	won, err := s.store.SettleTransaction(ctx, tx.ID, domain.TxStatusFailed, "")
	if err != nil {
		return fmt.Errorf("fail transaction: %w", err)
	}
	if !won {
		return nil
	}
	if err := s.store.RecordStatusChange(ctx, tx.ID, domain.TxStatusPending, domain.TxStatusFailed, cause.Error()); err != nil {
		zap.L().Error("audit write failed", zap.String("transaction_id", tx.ID.String()), zap.Error(err))
	}

	switch env.Kind {
	case domain.KindTopUp:
		// Nothing was credited at enqueue time, nothing to unwind.
	case domain.KindTransfer:
		s.unwindTransfer(ctx, env, tx)
	default:
		// Optimistically debited purchases refund amount plus fee.
		// Accrued loyalty points are kept; they may already be spent.
		if err := s.store.CreditBalance(ctx, env.AccountID, tx.AmountMicros+tx.FeeMicros, 0); err != nil {
			zap.L().Error("purchase refund failed",
				zap.String("transaction_id", tx.ID.String()), zap.Error(err))
			return fmt.Errorf("refund purchase: %w", err)
		}
	}

	observability.IncrementSettlement(env.Kind, "failed")
	s.notifier.Notify(ctx, env.AccountID, failureMessage(env))
	return nil
}

// unwindTransfer reverses both legs of a failed transfer. The sender
// refund is unconditional; the recipient debit respects the balance
// floor and is logged for reconciliation when the funds were already
// spent.
func (s *Settlement) unwindTransfer(ctx context.Context, env tasklog.Envelope, tx *models.Transaction) {
	if err := s.store.CreditBalance(ctx, env.AccountID, tx.AmountMicros+tx.FeeMicros, 0); err != nil {
		zap.L().Error("transfer sender refund failed",
			zap.String("transaction_id", tx.ID.String()), zap.Error(err))
	}

	var details struct {
		ToAccountID uuid.UUID `json:"to_account_id"`
	}
	if err := json.Unmarshal(tx.Details, &details); err != nil || details.ToAccountID == uuid.Nil {
		zap.L().Error("transfer details unreadable, recipient leg not reversed",
			zap.String("transaction_id", tx.ID.String()), zap.Error(err))
		return
	}
	if err := s.store.DebitBalance(ctx, details.ToAccountID, tx.AmountMicros, 0); err != nil {
		zap.L().Error("transfer recipient reversal failed",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("recipient_id", details.ToAccountID.String()),
			zap.Error(err))
	}
}

// DeadLetter implements tasklog.DeadLetterFunc. Envelopes that exhaust
// their deliveries are marked failed and surfaced through metrics.
func (s *Settlement) DeadLetter(ctx context.Context, env tasklog.Envelope, deliveries int64) {
	zap.L().Error("envelope exhausted deliveries",
		zap.String("transaction_id", env.TransactionID.String()),
		zap.String("kind", env.Kind),
		zap.Int64("deliveries", deliveries))

	won, err := s.store.SettleTransaction(ctx, env.TransactionID, domain.TxStatusFailed, "")
	if err != nil {
		zap.L().Error("dead letter status update failed",
			zap.String("transaction_id", env.TransactionID.String()), zap.Error(err))
		return
	}
	if won {
		if env.Kind == domain.KindCardOrder && env.CardID != uuid.Nil {
			if err := s.store.SetCardStatus(ctx, env.CardID, domain.CardStatusCancelled); err != nil {
				zap.L().Error("card cancellation failed",
					zap.String("card_id", env.CardID.String()), zap.Error(err))
			}
		}
		if err := s.store.RecordStatusChange(ctx, env.TransactionID, domain.TxStatusPending, domain.TxStatusFailed, "delivery limit exhausted"); err != nil {
			zap.L().Error("audit write failed",
				zap.String("transaction_id", env.TransactionID.String()), zap.Error(err))
		}
		observability.IncrementSettlement(env.Kind, "dead_letter")
		s.notifier.Notify(ctx, env.AccountID, failureMessage(env))
	}
}

func completionMessage(env tasklog.Envelope) string {
	switch env.Kind {
	case domain.KindTopUp:
		return fmt.Sprintf("Your wallet top-up of %s is complete.", domain.NewMoney(env.AmountMicros, env.Currency))
	case domain.KindCardOrder:
		return "Your card is ready to use."
	case domain.KindTransfer:
		return fmt.Sprintf("Your transfer of %s is complete.", domain.NewMoney(env.AmountMicros, env.Currency))
	default:
		return fmt.Sprintf("Your %s payment of %s is complete.", env.Kind, domain.NewMoney(env.AmountMicros, env.Currency))
	}
}

func failureMessage(env tasklog.Envelope) string {
	switch env.Kind {
	case domain.KindTopUp:
		return "Your wallet top-up could not be completed."
	case domain.KindTransfer:
		return "Your transfer could not be completed and has been reversed."
	default:
		return fmt.Sprintf("Your %s payment could not be completed. Your wallet has been refunded.", env.Kind)
	}
}
