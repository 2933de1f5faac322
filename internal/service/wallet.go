package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/models"
	"github.com/afripay/wallet-core/internal/observability"
	"github.com/afripay/wallet-core/internal/tasklog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WalletService implements the request-path mutations. Every operation
// takes an explicit verified identity, returns synchronously after the
// pending transaction and its envelope are durably recorded, and leaves
// settlement to the lane workers.
type WalletService struct {
	store    Store
	guard    ReserveGuard
	tasks    TaskAppender
	fraud    *FraudMonitor
	notifier Notifier
}

func NewWalletService(store Store, guard ReserveGuard, tasks TaskAppender, fraud *FraudMonitor, notifier Notifier) *WalletService {
	return &WalletService{
		store:    store,
		guard:    guard,
		tasks:    tasks,
		fraud:    fraud,
		notifier: notifier,
	}
}

// TopUpWallet records a pending top-up and enqueues it for settlement.
// The wallet is credited only when the settlement worker confirms the
// provider received funds, never at enqueue time.
func (s *WalletService) TopUpWallet(ctx context.Context, identity domain.Identity, amountMicros int64, currency, discriminator string) (*models.Transaction, error) {
	if err := validateAmount(amountMicros, currency); err != nil {
		return nil, err
	}
	if err := s.fraud.Evaluate(ctx, identity); err != nil {
		return nil, err
	}
	if err := s.reserve(ctx, identity, domain.KindTopUp, discriminator); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    identity.AccountID,
		Kind:         domain.KindTopUp,
		AmountMicros: amountMicros,
		Currency:     currency,
		Status:       domain.TxStatusPending,
		Provider:     domain.ProviderPaymentGateway,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, identity, tx, uuid.Nil, nil); err != nil {
		s.abandon(ctx, tx, "envelope append failed")
		return nil, err
	}

	s.notifier.Notify(ctx, identity.AccountID,
		fmt.Sprintf("Your wallet top-up of %s is being processed.", domain.NewMoney(amountMicros, currency)))
	return tx, nil
}

// PurchaseUtility handles utility, subscription and betting-fund
// purchases. The wallet is debited optimistically (amount plus 1.5% fee)
// in one atomic statement that also accrues loyalty points; settlement
// failure later issues a compensating refund.
func (s *WalletService) PurchaseUtility(ctx context.Context, identity domain.Identity, kind string, amountMicros int64, provider, currency string, details json.RawMessage, discriminator string) (*models.Transaction, error) {
	if _, ok := domain.PurchaseKinds[kind]; !ok {
		return nil, models.Validation("kind", "unsupported purchase kind "+kind)
	}
	if err := validateAmount(amountMicros, currency); err != nil {
		return nil, err
	}
	if provider == "" {
		return nil, models.Validation("provider", "provider is required")
	}
	if err := s.fraud.Evaluate(ctx, identity); err != nil {
		return nil, err
	}
	if err := s.reserve(ctx, identity, kind, discriminator); err != nil {
		return nil, err
	}

	fee := domain.FeeFor(kind, amountMicros)
	accrual := domain.LoyaltyAccrual(amountMicros)
	if err := s.store.DebitBalance(ctx, identity.AccountID, amountMicros+fee, accrual); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    identity.AccountID,
		Kind:         kind,
		AmountMicros: amountMicros,
		FeeMicros:    fee,
		Currency:     currency,
		Status:       domain.TxStatusPending,
		Provider:     provider,
		Details:      details,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		s.refund(ctx, identity.AccountID, amountMicros+fee, "purchase record failed")
		return nil, err
	}
	if err := s.enqueue(ctx, identity, tx, uuid.Nil, details); err != nil {
		s.refund(ctx, identity.AccountID, amountMicros+fee, "purchase envelope append failed")
		s.abandon(ctx, tx, "envelope append failed")
		return nil, err
	}

	s.notifier.Notify(ctx, identity.AccountID,
		fmt.Sprintf("Your %s purchase of %s is being processed.", kind, domain.NewMoney(amountMicros, currency)))
	return tx, nil
}

// TransferFunds moves money between two wallets. Both balances move
// atomically at enqueue time; the envelope settles against the internal
// provider to finalize the transaction record.
func (s *WalletService) TransferFunds(ctx context.Context, identity domain.Identity, toAccountID uuid.UUID, amountMicros int64, currency, discriminator string) (*models.Transaction, error) {
	if err := validateAmount(amountMicros, currency); err != nil {
		return nil, err
	}
	if toAccountID == identity.AccountID {
		return nil, models.Validation("to_account_id", "cannot transfer to the same account")
	}
	recipient, err := s.store.GetAccount(ctx, toAccountID)
	if err != nil {
		return nil, err
	}
	if err := s.fraud.Evaluate(ctx, identity); err != nil {
		return nil, err
	}
	if err := s.reserve(ctx, identity, domain.KindTransfer, discriminator); err != nil {
		return nil, err
	}

	fee := domain.FeeFor(domain.KindTransfer, amountMicros)
	accrual := domain.LoyaltyAccrual(amountMicros)
	if err := s.store.DebitBalance(ctx, identity.AccountID, amountMicros+fee, accrual); err != nil {
		return nil, err
	}
	if err := s.store.CreditBalance(ctx, recipient.ID, amountMicros, 0); err != nil {
		s.refund(ctx, identity.AccountID, amountMicros+fee, "recipient credit failed")
		return nil, err
	}

	details, _ := json.Marshal(map[string]string{"to_account_id": toAccountID.String()})
	tx := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    identity.AccountID,
		Kind:         domain.KindTransfer,
		AmountMicros: amountMicros,
		FeeMicros:    fee,
		Currency:     currency,
		Status:       domain.TxStatusPending,
		Provider:     domain.ProviderInternal,
		Details:      details,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		s.reverseTransfer(ctx, identity.AccountID, recipient.ID, amountMicros, fee, "transfer record failed")
		return nil, err
	}
	if err := s.enqueue(ctx, identity, tx, uuid.Nil, details); err != nil {
		s.reverseTransfer(ctx, identity.AccountID, recipient.ID, amountMicros, fee, "transfer envelope append failed")
		s.abandon(ctx, tx, "envelope append failed")
		return nil, err
	}

	// Sender first, then recipient: notification order follows the order
	// the balance changes were committed.
	s.notifier.Notify(ctx, identity.AccountID,
		fmt.Sprintf("You transferred %s.", domain.NewMoney(amountMicros, currency)))
	s.notifier.Notify(ctx, recipient.ID,
		fmt.Sprintf("You received %s.", domain.NewMoney(amountMicros, currency)))
	return tx, nil
}

// OrderCard debits the flat issuance fee, creates the card, and enqueues
// the order with the card issuer. A failed issuance cancels the card.
func (s *WalletService) OrderCard(ctx context.Context, identity domain.Identity, cardType string, spendingLimitMicros int64, currency, discriminator string) (*models.Card, *models.Transaction, error) {
	if cardType != domain.CardTypeVirtual && cardType != domain.CardTypePhysical {
		return nil, nil, models.Validation("type", "card type must be virtual or physical")
	}
	if !domain.SupportedCurrency(currency) {
		return nil, nil, models.Validation("currency", "unsupported currency "+currency)
	}
	if spendingLimitMicros <= 0 {
		spendingLimitMicros = 1_000_000_000 // default 1000 limit
	}
	if err := s.reserve(ctx, identity, domain.KindCardOrder, discriminator); err != nil {
		return nil, nil, err
	}

	fee := domain.CardOrderFee(cardType)
	if err := s.store.DebitBalance(ctx, identity.AccountID, fee, 10); err != nil {
		return nil, nil, err
	}

	card := &models.Card{
		ID:                  uuid.New(),
		AccountID:           identity.AccountID,
		Type:                cardType,
		CardNumber:          newCardNumber(),
		Status:              domain.CardStatusActive,
		SpendingLimitMicros: spendingLimitMicros,
	}
	if err := s.store.CreateCard(ctx, card); err != nil {
		s.refund(ctx, identity.AccountID, fee, "card record failed")
		return nil, nil, err
	}

	details, _ := json.Marshal(map[string]any{
		"card_id":               card.ID.String(),
		"type":                  cardType,
		"spending_limit_micros": spendingLimitMicros,
	})
	tx := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    identity.AccountID,
		Kind:         domain.KindCardOrder,
		AmountMicros: fee,
		Currency:     currency,
		Status:       domain.TxStatusPending,
		Provider:     domain.ProviderCardIssuer,
		Details:      details,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		s.refund(ctx, identity.AccountID, fee, "card order record failed")
		s.cancelCard(ctx, card.ID)
		return nil, nil, err
	}
	if err := s.enqueue(ctx, identity, tx, card.ID, details); err != nil {
		s.refund(ctx, identity.AccountID, fee, "card order envelope append failed")
		s.cancelCard(ctx, card.ID)
		s.abandon(ctx, tx, "envelope append failed")
		return nil, nil, err
	}

	s.notifier.Notify(ctx, identity.AccountID,
		fmt.Sprintf("Your %s card has been ordered.", cardType))
	return card, tx, nil
}

// RedeemLoyaltyPoints swaps points for wallet balance at 100 points per
// USD. The swap settles internally, so the transaction is recorded
// completed with no envelope.
func (s *WalletService) RedeemLoyaltyPoints(ctx context.Context, identity domain.Identity, points int64) (*models.Transaction, error) {
	if points <= 0 {
		return nil, models.Validation("points", "points must be positive")
	}
	cash := domain.LoyaltyCashValue(points)
	if err := s.store.RedeemLoyalty(ctx, identity.AccountID, points, cash); err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]int64{"points": points})
	tx := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    identity.AccountID,
		Kind:         domain.KindLoyaltyRedeem,
		AmountMicros: cash,
		Currency:     "USD",
		Status:       domain.TxStatusCompleted,
		Provider:     domain.ProviderInternal,
		Details:      details,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, identity.AccountID,
		fmt.Sprintf("You redeemed %d loyalty points for %s.", points, domain.NewMoney(cash, "USD")))
	return tx, nil
}

// FreezeCard toggles a card between active and frozen. Cancelled cards
// cannot be revived.
func (s *WalletService) FreezeCard(ctx context.Context, identity domain.Identity, cardID uuid.UUID, freeze bool) error {
	card, err := s.store.GetCard(ctx, cardID, identity.AccountID)
	if err != nil {
		return err
	}
	if card.Status == domain.CardStatusCancelled {
		return models.ErrCardCancelled
	}
	status := domain.CardStatusActive
	if freeze {
		status = domain.CardStatusFrozen
	}
	return s.store.SetCardStatus(ctx, cardID, status)
}

// CreateAccount provisions the wallet row for a verified identity. The
// auth service owns registration; this only creates the local account
// state.
func (s *WalletService) CreateAccount(ctx context.Context, identity domain.Identity, currency string) (*models.Account, error) {
	if !domain.SupportedCountry(identity.Country) {
		return nil, models.Validation("country", "unsupported country "+identity.Country)
	}
	if !domain.SupportedCurrency(currency) {
		return nil, models.Validation("currency", "unsupported currency "+currency)
	}
	account := &models.Account{
		ID:       identity.AccountID,
		Country:  identity.Country,
		Currency: currency,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// RegisterDevice stores the push token notifications are delivered to.
func (s *WalletService) RegisterDevice(ctx context.Context, identity domain.Identity, deviceToken string) error {
	if deviceToken == "" {
		return models.Validation("device_token", "device token is required")
	}
	return s.store.SetDeviceToken(ctx, identity.AccountID, deviceToken)
}

// GetAccount returns the caller's account.
func (s *WalletService) GetAccount(ctx context.Context, identity domain.Identity) (*models.Account, error) {
	return s.store.GetAccount(ctx, identity.AccountID)
}

// GetTransaction returns one of the caller's transactions.
func (s *WalletService) GetTransaction(ctx context.Context, identity domain.Identity, id uuid.UUID) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.AccountID != identity.AccountID {
		return nil, models.ErrTransactionNotFound
	}
	return tx, nil
}

// ListTransactions pages through the caller's transactions, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, identity domain.Identity, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactions(ctx, identity.AccountID, limit, offset)
}

func (s *WalletService) reserve(ctx context.Context, identity domain.Identity, kind, discriminator string) error {
	key := s.guard.Key(identity.AccountID, kind, discriminator)
	acquired, err := s.guard.Reserve(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency reserve: %w", err)
	}
	if !acquired {
		observability.IncrementIdempotencyEvent("duplicate")
		return models.ErrDuplicateRequest
	}
	observability.IncrementIdempotencyEvent("reserved")
	return nil
}

func (s *WalletService) enqueue(ctx context.Context, identity domain.Identity, tx *models.Transaction, cardID uuid.UUID, details json.RawMessage) error {
	env := tasklog.Envelope{
		TransactionID: tx.ID,
		AccountID:     identity.AccountID,
		CardID:        cardID,
		Kind:          tx.Kind,
		AmountMicros:  tx.AmountMicros,
		Currency:      tx.Currency,
		Provider:      tx.Provider,
		Details:       details,
		Country:       identity.Country,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := s.tasks.Append(ctx, identity.Lane(), env); err != nil {
		return fmt.Errorf("append settlement envelope: %w", err)
	}
	return nil
}

// refund is the compensating credit used when a later request-path step
// fails after the wallet was already debited. It is unconditional so it
// cannot itself fail on a balance floor.
func (s *WalletService) refund(ctx context.Context, accountID uuid.UUID, amountMicros int64, reason string) {
	if err := s.store.CreditBalance(ctx, accountID, amountMicros, 0); err != nil {
		zap.L().Error("compensating refund failed",
			zap.String("account_id", accountID.String()),
			zap.Int64("amount_micros", amountMicros),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// reverseTransfer unwinds both legs of a transfer whose record or
// envelope never made it. The sender refund is unconditional; the
// recipient may have spent the credit already, in which case the
// debit-back is logged for reconciliation.
func (s *WalletService) reverseTransfer(ctx context.Context, senderID, recipientID uuid.UUID, amountMicros, feeMicros int64, reason string) {
	s.refund(ctx, senderID, amountMicros+feeMicros, reason)
	if err := s.store.DebitBalance(ctx, recipientID, amountMicros, 0); err != nil {
		zap.L().Error("recipient reversal failed",
			zap.String("recipient_id", recipientID.String()),
			zap.Int64("amount_micros", amountMicros),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (s *WalletService) cancelCard(ctx context.Context, cardID uuid.UUID) {
	if err := s.store.SetCardStatus(ctx, cardID, domain.CardStatusCancelled); err != nil {
		zap.L().Error("card cancellation failed",
			zap.String("card_id", cardID.String()), zap.Error(err))
	}
}

// abandon fails a pending transaction whose envelope never reached the
// lane log. With no stream entry no worker will ever revisit it, so the
// record must not stay pending.
func (s *WalletService) abandon(ctx context.Context, tx *models.Transaction, reason string) {
	won, err := s.store.SettleTransaction(ctx, tx.ID, domain.TxStatusFailed, "")
	if err != nil || !won {
		zap.L().Error("abandoning pending transaction failed",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}
	tx.Status = domain.TxStatusFailed
	if err := s.store.RecordStatusChange(ctx, tx.ID, domain.TxStatusPending, domain.TxStatusFailed, reason); err != nil {
		zap.L().Error("audit write failed", zap.String("transaction_id", tx.ID.String()), zap.Error(err))
	}
}

func validateAmount(amountMicros int64, currency string) error {
	if amountMicros <= 0 {
		return models.Validation("amount", "amount must be positive")
	}
	if !domain.SupportedCurrency(currency) {
		return models.Validation("currency", "unsupported currency "+currency)
	}
	return nil
}

// newCardNumber generates an opaque card reference in xxxx-xxxx-xxxx-xxxx
// form. The issuing provider assigns the real PAN at settlement.
func newCardNumber() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	h := hex.EncodeToString(buf)
	parts := make([]string, 0, 4)
	for i := 0; i < len(h); i += 4 {
		parts = append(parts, h[i:i+4])
	}
	return strings.Join(parts, "-")
}
