package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupBalanceTestDB(t *testing.T) (*Service, func()) {
	cfg := models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	}

	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

// seedDeposit credits amount to the user's available balance with a
// completed deposit transaction, the way the ledger engine does.
func seedDeposit(t *testing.T, service *Service, userId, currency, amount, reference string) {
	t.Helper()
	err := service.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		sheet, err := tx.Sheet(ctx, userId)
		if err != nil {
			return err
		}
		value := decimal.RequireFromString(amount)
		if err := sheet.Credit(currency, value); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &models.Transaction{
			UserId:            userId,
			Type:              models.TransactionTypeDeposit,
			Status:            models.TransactionStatusCompleted,
			ToCurrency:        currency,
			Amount:            value,
			ReceivedAmount:    value,
			ExternalReference: reference,
		})
	})
	if err != nil {
		t.Fatalf("Failed to seed deposit: %v", err)
	}
}

func TestGetBalance_NoBalance(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	balance, err := service.GetBalance(context.Background(), "user1", "BTC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}

	if !balance.Available.IsZero() || !balance.Frozen.IsZero() {
		t.Errorf("Expected zero balance, got available=%s frozen=%s", balance.Available, balance.Frozen)
	}
	if balance.Version != 0 {
		t.Errorf("Expected version 0 for missing row, got %d", balance.Version)
	}
}

func TestGetBalance_AfterDeposit(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	seedDeposit(t, service, "user1", "BTC", "1.5", "pay-1")
	seedDeposit(t, service, "user1", "BTC", "0.25", "pay-2")

	balance, err := service.GetBalance(context.Background(), "user1", "BTC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}

	expected := decimal.RequireFromString("1.75")
	if !balance.Available.Equal(expected) {
		t.Errorf("Expected available %s, got %s", expected, balance.Available)
	}
	if !balance.LifetimeDeposited.Equal(expected) {
		t.Errorf("Expected lifetime deposited %s, got %s", expected, balance.LifetimeDeposited)
	}
	if balance.Version != 2 {
		t.Errorf("Expected version 2 after two writes, got %d", balance.Version)
	}
	if balance.LastTransactionId == "" {
		t.Error("Expected last transaction id to be set")
	}
}

func TestGetAllBalances(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	seedDeposit(t, service, "user1", "BTC", "1", "pay-1")
	seedDeposit(t, service, "user1", "ETH", "10", "pay-2")
	seedDeposit(t, service, "user2", "BTC", "3", "pay-3")

	balances, err := service.GetAllBalances(context.Background(), "user1")
	if err != nil {
		t.Fatalf("GetAllBalances failed: %v", err)
	}

	if len(balances) != 2 {
		t.Fatalf("Expected 2 balances, got %d", len(balances))
	}
	if balances[0].Currency != "BTC" || balances[1].Currency != "ETH" {
		t.Errorf("Expected BTC then ETH, got %s then %s", balances[0].Currency, balances[1].Currency)
	}

	holders, err := service.ListBalanceHolders(context.Background())
	if err != nil {
		t.Fatalf("ListBalanceHolders failed: %v", err)
	}
	if len(holders) != 2 || holders[0] != "user1" || holders[1] != "user2" {
		t.Errorf("Unexpected balance holders: %v", holders)
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	seedDeposit(t, service, "user1", "BTC", "2", "pay-1")

	boom := errors.New("boom")
	err := service.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		sheet, err := tx.Sheet(ctx, "user1")
		if err != nil {
			return err
		}
		if err := sheet.Debit("BTC", decimal.NewFromInt(1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	balance, err := service.GetBalance(context.Background(), "user1", "BTC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected rolled back balance 2, got %s", balance.Available)
	}
}

func TestRunInTx_SheetIsSharedWithinUnit(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	err := service.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		first, err := tx.Sheet(ctx, "user1")
		if err != nil {
			return err
		}
		second, err := tx.Sheet(ctx, "user1")
		if err != nil {
			return err
		}
		if first != second {
			t.Error("Expected the same sheet for repeated loads")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
}

func TestReconcileBalance(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedDeposit(t, service, "user1", "BTC", "5", "pay-1")

	if err := service.ReconcileBalance(ctx, "user1", "BTC"); err != nil {
		t.Fatalf("Expected balanced journal, got %v", err)
	}

	// Tamper with the stored balance behind the journal's back
	if _, err := service.db.Exec("UPDATE account_balances SET available = '6' WHERE user_id = 'user1'"); err != nil {
		t.Fatalf("Failed to tamper with balance: %v", err)
	}
	if err := service.ReconcileBalance(ctx, "user1", "BTC"); err == nil {
		t.Error("Expected reconciliation mismatch")
	}
}

func TestFlush_DetectsConcurrentModification(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	seedDeposit(t, service, "user1", "BTC", "5", "pay-1")

	err := service.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		sheet, err := tx.Sheet(ctx, "user1")
		if err != nil {
			return err
		}
		// Simulate a writer that bumped the row after it was loaded
		uow := tx.(*unitOfWork)
		if _, err := uow.tx.ExecContext(ctx, "UPDATE account_balances SET version = version + 1 WHERE user_id = 'user1'"); err != nil {
			return err
		}
		return sheet.Debit("BTC", decimal.NewFromInt(1))
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}
}
