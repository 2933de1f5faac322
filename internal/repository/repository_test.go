package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/afripay/wallet-core/internal/db"
	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load("../../.env") // Load from root
}

func setupRepo(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	pool, err := db.Connect(context.Background(), os.Getenv("DATABASE_URL"))
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	t.Cleanup(pool.Close)

	ensureSchema(t, pool)
	return NewRepository(pool), pool
}

func ensureSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	sql, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read migration: %v", err)
	}
	if _, err := pool.Exec(context.Background(), string(sql)); err != nil {
		t.Fatalf("Failed to apply migration: %v", err)
	}
}

func seedAccount(t *testing.T, repo *Repository, balanceMicros, points int64) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:            uuid.New(),
		Country:       "Nigeria",
		Currency:      "USD",
		BalanceMicros: balanceMicros,
		LoyaltyPoints: points,
	}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

func TestAccountLifecycle(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, 100_000_000, 5)

	got, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.BalanceMicros != 100_000_000 {
		t.Errorf("Expected balance 100000000, got %d", got.BalanceMicros)
	}
	if got.Country != "Nigeria" {
		t.Errorf("Expected country Nigeria, got %s", got.Country)
	}

	if err := repo.SetDeviceToken(ctx, account.ID, "device-abc"); err != nil {
		t.Fatalf("SetDeviceToken failed: %v", err)
	}
	got, err = repo.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.DeviceToken != "device-abc" {
		t.Errorf("Expected device token device-abc, got %s", got.DeviceToken)
	}

	if _, err := repo.GetAccount(ctx, uuid.New()); !errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestDebitBalance_FloorEnforced(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, 50_000_000, 0)

	if err := repo.DebitBalance(ctx, account.ID, 30_000_000, 3); err != nil {
		t.Fatalf("DebitBalance failed: %v", err)
	}
	if err := repo.DebitBalance(ctx, account.ID, 30_000_000, 0); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}

	got, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.BalanceMicros != 20_000_000 {
		t.Errorf("Expected balance 20000000, got %d", got.BalanceMicros)
	}
	if got.LoyaltyPoints != 3 {
		t.Errorf("Expected 3 loyalty points, got %d", got.LoyaltyPoints)
	}
}

func TestDebitBalance_ConcurrentSingleWinner(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	// Balance covers exactly one of the two concurrent debits.
	account := seedAccount(t, repo, 50_000_000, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.DebitBalance(ctx, account.ID, 40_000_000, 0)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if errors.Is(err, models.ErrInsufficientFunds) {
			failures++
		} else if err != nil {
			t.Fatalf("Unexpected debit error: %v", err)
		}
	}
	if failures != 1 {
		t.Errorf("Expected exactly one insufficient-funds rejection, got %d", failures)
	}

	got, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.BalanceMicros != 10_000_000 {
		t.Errorf("Expected balance 10000000, got %d", got.BalanceMicros)
	}
}

func TestRedeemLoyalty_FloorEnforced(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, 0, 150)

	if err := repo.RedeemLoyalty(ctx, account.ID, 100, 1_000_000); err != nil {
		t.Fatalf("RedeemLoyalty failed: %v", err)
	}
	if err := repo.RedeemLoyalty(ctx, account.ID, 100, 1_000_000); !errors.Is(err, models.ErrInsufficientLoyalty) {
		t.Errorf("Expected ErrInsufficientLoyalty, got %v", err)
	}

	got, err := repo.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.LoyaltyPoints != 50 {
		t.Errorf("Expected 50 points, got %d", got.LoyaltyPoints)
	}
	if got.BalanceMicros != 1_000_000 {
		t.Errorf("Expected balance 1000000, got %d", got.BalanceMicros)
	}
}

func TestSettleTransaction_CompareAndSet(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, 0, 0)
	tx := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    account.ID,
		Kind:         domain.KindTopUp,
		AmountMicros: 10_000_000,
		Currency:     "USD",
		Status:       domain.TxStatusPending,
		Provider:     domain.ProviderPaymentGateway,
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	won, err := repo.SettleTransaction(ctx, tx.ID, domain.TxStatusCompleted, "gw-1")
	if err != nil {
		t.Fatalf("SettleTransaction failed: %v", err)
	}
	if !won {
		t.Fatal("Expected first settle to win")
	}

	// Second settle loses the CAS and must not overwrite.
	won, err = repo.SettleTransaction(ctx, tx.ID, domain.TxStatusFailed, "")
	if err != nil {
		t.Fatalf("SettleTransaction failed: %v", err)
	}
	if won {
		t.Error("Expected second settle to lose")
	}

	got, err := repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.Status != domain.TxStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if got.ProviderRef != "gw-1" {
		t.Errorf("Expected provider ref gw-1, got %s", got.ProviderRef)
	}

	// The fraud monitor's hold is the one sanctioned override.
	if err := repo.HoldTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("HoldTransaction failed: %v", err)
	}
	got, err = repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.Status != domain.TxStatusPending {
		t.Errorf("Expected pending after hold, got %s", got.Status)
	}
}

func TestListAndSumTransactions(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, 0, 0)
	amounts := []int64{10_000_000, 20_000_000, 30_000_000}
	for _, amount := range amounts {
		tx := &models.Transaction{
			ID:           uuid.New(),
			AccountID:    account.ID,
			Kind:         domain.KindUtility,
			AmountMicros: amount,
			Currency:     "USD",
			Status:       domain.TxStatusPending,
			Provider:     "power-co",
		}
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	txs, err := repo.ListTransactions(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(txs))
	}

	latest, err := repo.LatestTransaction(ctx, account.ID)
	if err != nil {
		t.Fatalf("LatestTransaction failed: %v", err)
	}
	if latest.ID != txs[0].ID {
		t.Errorf("Expected latest %s, got %s", txs[0].ID, latest.ID)
	}

	sum, err := repo.SumTransactionsSince(ctx, account.ID, txs[len(txs)-1].CreatedAt)
	if err != nil {
		t.Fatalf("SumTransactionsSince failed: %v", err)
	}
	if sum != 60_000_000 {
		t.Errorf("Expected sum 60000000, got %d", sum)
	}
}

func TestCardLifecycle(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, 0, 0)
	card := &models.Card{
		ID:                  uuid.New(),
		AccountID:           account.ID,
		Type:                domain.CardTypeVirtual,
		CardNumber:          "aaaa-bbbb-cccc-dddd",
		Status:              domain.CardStatusActive,
		SpendingLimitMicros: 1_000_000_000,
	}
	if err := repo.CreateCard(ctx, card); err != nil {
		t.Fatalf("CreateCard failed: %v", err)
	}

	if _, err := repo.GetCard(ctx, card.ID, uuid.New()); !errors.Is(err, models.ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound for wrong owner, got %v", err)
	}

	if err := repo.SetCardStatus(ctx, card.ID, domain.CardStatusCancelled); err != nil {
		t.Fatalf("SetCardStatus failed: %v", err)
	}
	got, err := repo.GetCard(ctx, card.ID, account.ID)
	if err != nil {
		t.Fatalf("GetCard failed: %v", err)
	}
	if got.Status != domain.CardStatusCancelled {
		t.Errorf("Expected cancelled, got %s", got.Status)
	}
}

func TestAuditTrail(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, 0, 0)
	tx := &models.Transaction{
		ID:           uuid.New(),
		AccountID:    account.ID,
		Kind:         domain.KindTransfer,
		AmountMicros: 5_000_000,
		Currency:     "USD",
		Status:       domain.TxStatusPending,
		Provider:     domain.ProviderInternal,
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	if err := repo.RecordStatusChange(ctx, tx.ID, domain.TxStatusPending, domain.TxStatusCompleted, "settled"); err != nil {
		t.Fatalf("RecordStatusChange failed: %v", err)
	}
	if err := repo.RecordStatusChange(ctx, tx.ID, domain.TxStatusCompleted, domain.TxStatusPending, "fraud_hold"); err != nil {
		t.Fatalf("RecordStatusChange failed: %v", err)
	}

	entries, err := repo.ListStatusChanges(ctx, tx.ID)
	if err != nil {
		t.Fatalf("ListStatusChanges failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Reason != "settled" || entries[1].Reason != "fraud_hold" {
		t.Errorf("Unexpected audit order: %+v", entries)
	}
}
