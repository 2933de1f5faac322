package service

import (
	"context"
	"time"

	"github.com/afripay/wallet-core/internal/models"
	"github.com/afripay/wallet-core/internal/tasklog"
	"github.com/google/uuid"
)

// Store is the minimal data access contract required by the services.
// *repository.Repository satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetDeviceToken(ctx context.Context, id uuid.UUID, token string) error
	CreditBalance(ctx context.Context, id uuid.UUID, amountMicros, points int64) error
	DebitBalance(ctx context.Context, id uuid.UUID, amountMicros, points int64) error
	RedeemLoyalty(ctx context.Context, id uuid.UUID, points, cashMicros int64) error

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	SettleTransaction(ctx context.Context, id uuid.UUID, status, providerRef string) (bool, error)
	HoldTransaction(ctx context.Context, id uuid.UUID) error
	LatestTransaction(ctx context.Context, accountID uuid.UUID) (*models.Transaction, error)
	SumTransactionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	RecordStatusChange(ctx context.Context, transactionID uuid.UUID, prev, next, reason string) error

	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, id, accountID uuid.UUID) (*models.Card, error)
	SetCardStatus(ctx context.Context, id uuid.UUID, status string) error
}

// ReserveGuard is the idempotency barrier contract.
type ReserveGuard interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Key(accountID uuid.UUID, kind, discriminator string) string
}

// TaskAppender appends envelopes to the durable lane log.
type TaskAppender interface {
	Append(ctx context.Context, lane int, env tasklog.Envelope) error
}
