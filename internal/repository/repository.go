package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/afripay/wallet-core/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres data access layer. Balance and loyalty
// mutations are single-statement atomic increments; transaction status
// writes are compare-and-set so redelivered envelopes cannot resurrect a
// terminal transaction.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, country, currency, balance_micros, loyalty_points, device_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		account.ID, account.Country, account.Currency,
		account.BalanceMicros, account.LoyaltyPoints, account.DeviceToken,
	).Scan(&account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account := &models.Account{}
	query := `SELECT id, country, currency, balance_micros, loyalty_points, device_token, created_at
		FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&account.ID, &account.Country, &account.Currency,
		&account.BalanceMicros, &account.LoyaltyPoints, &account.DeviceToken, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// CreditBalance applies an unconditional atomic increment to balance and
// loyalty points. Used for settlement credits, recipient credits and
// compensating refunds, which must never fail on a balance floor.
func (r *Repository) CreditBalance(ctx context.Context, id uuid.UUID, amountMicros, points int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET balance_micros = balance_micros + $2, loyalty_points = loyalty_points + $3 WHERE id = $1`,
		id, amountMicros, points)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// DebitBalance atomically debits the wallet with a balance floor check in
// the same statement, closing the race between concurrent debits. Accrued
// loyalty points are applied in the same write.
func (r *Repository) DebitBalance(ctx context.Context, id uuid.UUID, amountMicros, points int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET balance_micros = balance_micros - $2, loyalty_points = loyalty_points + $3
		 WHERE id = $1 AND balance_micros >= $2`,
		id, amountMicros, points)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInsufficientFunds
	}
	return nil
}

// RedeemLoyalty atomically swaps loyalty points for wallet balance, with
// the points floor checked in the same statement.
func (r *Repository) RedeemLoyalty(ctx context.Context, id uuid.UUID, points, cashMicros int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET loyalty_points = loyalty_points - $2, balance_micros = balance_micros + $3
		 WHERE id = $1 AND loyalty_points >= $2`,
		id, points, cashMicros)
	if err != nil {
		return fmt.Errorf("failed to redeem loyalty points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInsufficientLoyalty
	}
	return nil
}

func (r *Repository) SetDeviceToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET device_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("failed to set device token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `INSERT INTO transactions (id, account_id, kind, amount_micros, fee_micros, currency, status, provider, provider_ref, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()) RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		tx.ID, tx.AccountID, tx.Kind, tx.AmountMicros, tx.FeeMicros,
		tx.Currency, tx.Status, tx.Provider, tx.ProviderRef, tx.Details,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx := &models.Transaction{}
	query := `SELECT id, account_id, kind, amount_micros, fee_micros, currency, status, provider, COALESCE(provider_ref, ''), details, created_at
		FROM transactions WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&tx.ID, &tx.AccountID, &tx.Kind, &tx.AmountMicros, &tx.FeeMicros,
		&tx.Currency, &tx.Status, &tx.Provider, &tx.ProviderRef, &tx.Details, &tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// SettleTransaction moves a pending transaction to a terminal status.
// The WHERE clause is the compare-and-set: it returns false without
// touching the row when the transaction is already terminal, so a
// redelivered envelope settles as a no-op.
func (r *Repository) SettleTransaction(ctx context.Context, id uuid.UUID, status, providerRef string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET status = $2, provider_ref = NULLIF($3, '') WHERE id = $1 AND status = 'pending'`,
		id, status, providerRef)
	if err != nil {
		return false, fmt.Errorf("failed to settle transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// HoldTransaction forces a transaction back to pending regardless of its
// current status. Only the fraud monitor calls this; its write wins over a
// concurrent settlement by running unconditionally and last.
func (r *Repository) HoldTransaction(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET status = 'pending' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to hold transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTransactionNotFound
	}
	return nil
}

// LatestTransaction returns the account's most recently created transaction.
func (r *Repository) LatestTransaction(ctx context.Context, accountID uuid.UUID) (*models.Transaction, error) {
	tx := &models.Transaction{}
	query := `SELECT id, account_id, kind, amount_micros, fee_micros, currency, status, provider, COALESCE(provider_ref, ''), details, created_at
		FROM transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT 1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&tx.ID, &tx.AccountID, &tx.Kind, &tx.AmountMicros, &tx.FeeMicros,
		&tx.Currency, &tx.Status, &tx.Provider, &tx.ProviderRef, &tx.Details, &tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get latest transaction: %w", err)
	}
	return tx, nil
}

// SumTransactionsSince returns the sum of transaction amounts for an
// account created at or after the cutoff. Feeds the fraud window.
func (r *Repository) SumTransactionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_micros), 0) FROM transactions WHERE account_id = $1 AND created_at >= $2`,
		accountID, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}

func (r *Repository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	query := `SELECT id, account_id, kind, amount_micros, fee_micros, currency, status, provider, COALESCE(provider_ref, ''), details, created_at
		FROM transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.AccountID, &tx.Kind, &tx.AmountMicros, &tx.FeeMicros,
			&tx.Currency, &tx.Status, &tx.Provider, &tx.ProviderRef, &tx.Details, &tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	query := `INSERT INTO cards (id, account_id, type, card_number, status, spending_limit_micros, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		card.ID, card.AccountID, card.Type, card.CardNumber, card.Status, card.SpendingLimitMicros,
	).Scan(&card.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

func (r *Repository) GetCard(ctx context.Context, id, accountID uuid.UUID) (*models.Card, error) {
	card := &models.Card{}
	query := `SELECT id, account_id, type, card_number, status, spending_limit_micros, created_at
		FROM cards WHERE id = $1 AND account_id = $2`
	err := r.db.QueryRow(ctx, query, id, accountID).Scan(
		&card.ID, &card.AccountID, &card.Type, &card.CardNumber,
		&card.Status, &card.SpendingLimitMicros, &card.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

func (r *Repository) SetCardStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE cards SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set card status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCardNotFound
	}
	return nil
}
