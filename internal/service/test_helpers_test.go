package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/models"
	"github.com/afripay/wallet-core/internal/tasklog"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same atomicity semantics as
// the SQL repository: conditional decrements, CAS status transitions.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	txs      map[uuid.UUID]*models.Transaction
	cards    map[uuid.UUID]*models.Card
	audits   []auditRecord

	failCreateTx bool
}

type auditRecord struct {
	TransactionID uuid.UUID
	Prev, Next    string
	Reason        string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[uuid.UUID]*models.Account),
		txs:      make(map[uuid.UUID]*models.Transaction),
		cards:    make(map[uuid.UUID]*models.Card),
	}
}

func (s *fakeStore) addAccount(country string, balanceMicros, points int64) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := &models.Account{
		ID:            uuid.New(),
		Country:       country,
		Currency:      "USD",
		BalanceMicros: balanceMicros,
		LoyaltyPoints: points,
		CreatedAt:     time.Now(),
	}
	s.accounts[account.ID] = account
	return account
}

func (s *fakeStore) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account exists")
	}
	cp := *account
	cp.CreatedAt = time.Now()
	s.accounts[account.ID] = &cp
	return nil
}

func (s *fakeStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *fakeStore) SetDeviceToken(ctx context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	account.DeviceToken = token
	return nil
}

func (s *fakeStore) CreditBalance(ctx context.Context, id uuid.UUID, amountMicros, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	account.BalanceMicros += amountMicros
	account.LoyaltyPoints += points
	return nil
}

func (s *fakeStore) DebitBalance(ctx context.Context, id uuid.UUID, amountMicros, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	if account.BalanceMicros < amountMicros {
		return models.ErrInsufficientFunds
	}
	account.BalanceMicros -= amountMicros
	account.LoyaltyPoints += points
	return nil
}

func (s *fakeStore) RedeemLoyalty(ctx context.Context, id uuid.UUID, points, cashMicros int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	if account.LoyaltyPoints < points {
		return models.ErrInsufficientLoyalty
	}
	account.LoyaltyPoints -= points
	account.BalanceMicros += cashMicros
	return nil
}

func (s *fakeStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateTx {
		return fmt.Errorf("transaction insert failed")
	}
	cp := *tx
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.txs[cp.ID] = &cp
	return nil
}

func (s *fakeStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *fakeStore) SettleTransaction(ctx context.Context, id uuid.UUID, status, providerRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return false, nil
	}
	if tx.Status != domain.TxStatusPending {
		return false, nil
	}
	tx.Status = status
	if providerRef != "" {
		tx.ProviderRef = providerRef
	}
	return true, nil
}

func (s *fakeStore) HoldTransaction(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return models.ErrTransactionNotFound
	}
	tx.Status = domain.TxStatusPending
	return nil
}

func (s *fakeStore) LatestTransaction(ctx context.Context, accountID uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Transaction
	for _, tx := range s.txs {
		if tx.AccountID != accountID {
			continue
		}
		if latest == nil || tx.CreatedAt.After(latest.CreatedAt) {
			latest = tx
		}
	}
	if latest == nil {
		return nil, models.ErrTransactionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *fakeStore) SumTransactionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, tx := range s.txs {
		if tx.AccountID == accountID && tx.CreatedAt.After(since) {
			sum += tx.AmountMicros
		}
	}
	return sum, nil
}

func (s *fakeStore) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.txs {
		if tx.AccountID == accountID {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) RecordStatusChange(ctx context.Context, transactionID uuid.UUID, prev, next, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, auditRecord{TransactionID: transactionID, Prev: prev, Next: next, Reason: reason})
	return nil
}

func (s *fakeStore) CreateCard(ctx context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *card
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.cards[cp.ID] = &cp
	return nil
}

func (s *fakeStore) GetCard(ctx context.Context, id, accountID uuid.UUID) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok || card.AccountID != accountID {
		return nil, models.ErrCardNotFound
	}
	cp := *card
	return &cp, nil
}

func (s *fakeStore) SetCardStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[id]
	if !ok {
		return models.ErrCardNotFound
	}
	card.Status = status
	return nil
}

func (s *fakeStore) transactionCount(accountID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, tx := range s.txs {
		if tx.AccountID == accountID {
			count++
		}
	}
	return count
}

func (s *fakeStore) cardFor(accountID uuid.UUID) *models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, card := range s.cards {
		if card.AccountID == accountID {
			cp := *card
			return &cp
		}
	}
	return nil
}

func (s *fakeStore) balance(accountID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].BalanceMicros
}

func (s *fakeStore) points(accountID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].LoyaltyPoints
}

// fakeGuard reserves keys in a map, mirroring SET NX semantics.
type fakeGuard struct {
	mu       sync.Mutex
	reserved map[string]bool
	failWith error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{reserved: make(map[string]bool)}
}

func (g *fakeGuard) Reserve(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWith != nil {
		return false, g.failWith
	}
	if g.reserved[key] {
		return false, nil
	}
	g.reserved[key] = true
	return true, nil
}

func (g *fakeGuard) Key(accountID uuid.UUID, kind, discriminator string) string {
	if discriminator == "" {
		discriminator = "bucket"
	}
	return fmt.Sprintf("%s:%s:%s", accountID, kind, discriminator)
}

// fakeAppender records envelopes per lane.
type fakeAppender struct {
	mu        sync.Mutex
	envelopes map[int][]tasklog.Envelope
	failWith  error
}

func newFakeAppender() *fakeAppender {
	return &fakeAppender{envelopes: make(map[int][]tasklog.Envelope)}
}

func (a *fakeAppender) Append(ctx context.Context, lane int, env tasklog.Envelope) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWith != nil {
		return a.failWith
	}
	a.envelopes[lane] = append(a.envelopes[lane], env)
	return nil
}

func (a *fakeAppender) lane(lane int) []tasklog.Envelope {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.envelopes[lane]
}

func (a *fakeAppender) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	count := 0
	for _, envs := range a.envelopes {
		count += len(envs)
	}
	return count
}

// fakeNotifier records messages per account.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []notifiedMessage
}

type notifiedMessage struct {
	AccountID uuid.UUID
	Message   string
}

func (n *fakeNotifier) Notify(ctx context.Context, accountID uuid.UUID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, notifiedMessage{AccountID: accountID, Message: message})
}

func (n *fakeNotifier) forAccount(accountID uuid.UUID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.messages {
		if m.AccountID == accountID {
			out = append(out, m.Message)
		}
	}
	return out
}

// fakeProvider scripts provider outcomes and counts Settle calls.
type fakeProvider struct {
	mu    sync.Mutex
	ref   string
	err   error
	calls int
}

func (p *fakeProvider) Settle(ctx context.Context, kind string, amountMicros int64, currency string, details json.RawMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	if p.ref == "" {
		return "ref-0001", nil
	}
	return p.ref, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
