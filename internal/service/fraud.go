package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/models"
	"github.com/afripay/wallet-core/internal/observability"
	"go.uber.org/zap"
)

const fraudWindow = 24 * time.Hour

// FraudMonitor evaluates rolling-window spend per account against the
// per-country threshold table. It runs on the request path for transfer,
// purchase and top-up mutations, independent of the settlement workers.
type FraudMonitor struct {
	store    Store
	notifier Notifier
}

func NewFraudMonitor(store Store, notifier Notifier) *FraudMonitor {
	return &FraudMonitor{store: store, notifier: notifier}
}

// Evaluate sums the account's transactions over the trailing 24 hours and
// compares against the country threshold. When flagged, the account's most
// recent transaction is forced back to pending — the monitor's write is
// unconditional, so it wins over a concurrently committing settlement —
// and a verification notification is raised. Returns ErrFraudHold when
// flagged, nil when clear.
func (m *FraudMonitor) Evaluate(ctx context.Context, identity domain.Identity) error {
	since := time.Now().Add(-fraudWindow)
	sum, err := m.store.SumTransactionsSince(ctx, identity.AccountID, since)
	if err != nil {
		return fmt.Errorf("fraud window sum: %w", err)
	}

	threshold := domain.FraudThresholdFor(identity.Country)
	if sum <= threshold {
		return nil
	}

	observability.IncrementFraudFlag(identity.Country)
	zap.L().Warn("fraud threshold exceeded",
		zap.String("account_id", identity.AccountID.String()),
		zap.String("country", identity.Country),
		zap.Int64("window_sum_micros", sum),
		zap.Int64("threshold_micros", threshold),
	)

	latest, err := m.store.LatestTransaction(ctx, identity.AccountID)
	if err != nil {
		if !errors.Is(err, models.ErrTransactionNotFound) {
			zap.L().Error("fraud hold: latest transaction lookup failed", zap.Error(err))
		}
	} else {
		prev := latest.Status
		if err := m.store.HoldTransaction(ctx, latest.ID); err != nil {
			zap.L().Error("fraud hold write failed",
				zap.String("transaction_id", latest.ID.String()),
				zap.Error(err),
			)
		} else if err := m.store.RecordStatusChange(ctx, latest.ID, prev, domain.TxStatusPending, "fraud_hold"); err != nil {
			zap.L().Warn("fraud hold audit write failed", zap.Error(err))
		}
	}

	m.notifier.Notify(ctx, identity.AccountID, "High transaction volume detected. Please verify your account.")
	return models.ErrFraudHold
}
