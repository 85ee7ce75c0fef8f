package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func journalTotals(t *testing.T, service *Service, transactionId string) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	entries, err := service.GetJournalEntries(context.Background(), transactionId)
	if err != nil {
		t.Fatalf("GetJournalEntries failed: %v", err)
	}
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		debits = debits.Add(e.DebitAmount)
		credits = credits.Add(e.CreditAmount)
	}
	return debits, credits
}

func TestInsertTransaction_DuplicateDepositReference(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	seedDeposit(t, service, "user1", "BTC", "1", "pay-1")

	err := service.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertTransaction(ctx, &models.Transaction{
			UserId:            "user1",
			Type:              models.TransactionTypeDeposit,
			Status:            models.TransactionStatusCompleted,
			ToCurrency:        "BTC",
			Amount:            decimal.NewFromInt(1),
			ExternalReference: "pay-1",
		})
	})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("Expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestInsertTransaction_JournalBalances(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	var txId string
	err := service.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		swap := &models.Transaction{
			UserId:         "user1",
			Type:           models.TransactionTypeSwap,
			Status:         models.TransactionStatusCompleted,
			FromCurrency:   "BTC",
			ToCurrency:     "ETH",
			Amount:         decimal.RequireFromString("0.5"),
			ReceivedAmount: decimal.RequireFromString("9.99"),
			Fee:            decimal.RequireFromString("0.01"),
		}
		if err := tx.InsertTransaction(ctx, swap); err != nil {
			return err
		}
		txId = swap.Id
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}

	debits, credits := journalTotals(t, service, txId)
	if !debits.Equal(credits) {
		t.Errorf("Expected balanced journal, got debits=%s credits=%s", debits, credits)
	}
}

func TestUpdateTransactionStatus(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	var txId string
	err := service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		w := &models.Transaction{
			UserId:       "user1",
			Type:         models.TransactionTypeWithdrawal,
			Status:       models.TransactionStatusPending,
			FromCurrency: "BTC",
			Amount:       decimal.NewFromInt(10),
			Fee:          decimal.NewFromInt(1),
		}
		if err := tx.InsertTransaction(ctx, w); err != nil {
			return err
		}
		txId = w.Id
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}

	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateTransactionStatus(ctx, txId, models.TransactionStatusCompleted)
	})
	if err != nil {
		t.Fatalf("UpdateTransactionStatus failed: %v", err)
	}

	got, err := service.GetTransaction(ctx, txId)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.Status != models.TransactionStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}

	// pending and completed postings together
	entries, err := service.GetJournalEntries(ctx, txId)
	if err != nil {
		t.Fatalf("GetJournalEntries failed: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Expected 5 journal entries, got %d", len(entries))
	}

	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateTransactionStatus(ctx, txId, models.TransactionStatusFailed)
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second update, got %v", err)
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	_, err := service.GetTransaction(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetTransactionHistory(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for _, ref := range []string{"pay-1", "pay-2", "pay-3"} {
		seedDeposit(t, service, "user1", "BTC", "1", ref)
	}
	seedDeposit(t, service, "user1", "ETH", "1", "pay-4")

	history, err := service.GetTransactionHistory(ctx, "user1", "BTC", 2, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(history))
	}
	if history[0].ExternalReference != "pay-3" {
		t.Errorf("Expected newest first, got %s", history[0].ExternalReference)
	}

	page, err := service.GetTransactionHistory(ctx, "user1", "BTC", 2, 2)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(page) != 1 || page[0].ExternalReference != "pay-1" {
		t.Errorf("Unexpected second page: %+v", page)
	}
}

func TestWithdrawalAndDepositRecords(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	deposit := &models.Deposit{
		UserId:    "user1",
		OrderId:   "order-1",
		PaymentId: "P1",
		Currency:  "BTC",
		Amount:    decimal.RequireFromString("0.5"),
	}
	if err := service.CreateDeposit(ctx, deposit); err != nil {
		t.Fatalf("CreateDeposit failed: %v", err)
	}
	if err := service.CreateDeposit(ctx, &models.Deposit{UserId: "user1", OrderId: "order-2", PaymentId: "P1", Currency: "BTC"}); !errors.Is(err, ErrDuplicateTransaction) {
		t.Errorf("Expected duplicate payment id to be rejected, got %v", err)
	}
	if _, err := service.GetDepositByPaymentId(ctx, "P2"); !errors.Is(err, store.ErrUnknownPayment) {
		t.Errorf("Expected ErrUnknownPayment, got %v", err)
	}

	err := service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDepositByPaymentId(ctx, "P1")
		if err != nil {
			return err
		}
		if err := tx.UpdateDepositStatus(ctx, d.PaymentId, models.DepositStatusFinished, d.Amount); err != nil {
			return err
		}
		if err := tx.MarkDepositCompleted(ctx, d.PaymentId, d.UpdatedAt); err != nil {
			return err
		}
		if err := tx.MarkDepositCompleted(ctx, d.PaymentId, d.UpdatedAt); !errors.Is(err, store.ErrAlreadyProcessed) {
			t.Errorf("Expected ErrAlreadyProcessed on second completion, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}

	stored, err := service.GetDepositByPaymentId(ctx, "P1")
	if err != nil {
		t.Fatalf("GetDepositByPaymentId failed: %v", err)
	}
	if stored.Status != models.DepositStatusFinished || stored.CompletedAt == nil {
		t.Errorf("Expected finished and completed deposit, got %s completed_at=%v", stored.Status, stored.CompletedAt)
	}
	if !stored.ActuallyPaid.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Expected actually paid 0.5, got %s", stored.ActuallyPaid)
	}

	var withdrawalId string
	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		txn := &models.Transaction{
			UserId:       "user1",
			Type:         models.TransactionTypeWithdrawal,
			Status:       models.TransactionStatusPending,
			FromCurrency: "BTC",
			Amount:       decimal.RequireFromString("0.1"),
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		w := &models.Withdrawal{
			Id:            "w-1",
			UserId:        "user1",
			Currency:      "BTC",
			Amount:        txn.Amount,
			Fee:           decimal.Zero,
			ToAddress:     "bc1qexample",
			Status:        models.WithdrawalStatusPending,
			Priority:      models.WithdrawalPriorityNormal,
			TransactionId: txn.Id,
		}
		withdrawalId = w.Id
		return tx.InsertWithdrawal(ctx, w)
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}

	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		w, err := tx.GetWithdrawal(ctx, withdrawalId)
		if err != nil {
			return err
		}
		w.Status = models.WithdrawalStatusProcessing
		w.ProcessedBy = "admin"
		return tx.UpdateWithdrawal(ctx, w, models.WithdrawalStatusCompleted)
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState for stale status, got %v", err)
	}

	pending, err := service.ListWithdrawals(ctx, models.WithdrawalStatusPending, 10)
	if err != nil {
		t.Fatalf("ListWithdrawals failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Id != withdrawalId {
		t.Errorf("Expected one pending withdrawal, got %+v", pending)
	}
}

func TestListOpenDeposits(t *testing.T) {
	service, cleanup := setupBalanceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for _, d := range []*models.Deposit{
		{UserId: "user1", OrderId: "o-open", PaymentId: "P-open", Currency: "BTC", Amount: decimal.NewFromInt(1)},
		{UserId: "user1", OrderId: "o-expired", PaymentId: "P-expired", Currency: "BTC", Amount: decimal.NewFromInt(1), Status: models.DepositStatusExpired},
		{UserId: "user2", OrderId: "o-done", PaymentId: "P-done", Currency: "BTC", Amount: decimal.NewFromInt(1)},
	} {
		if err := service.CreateDeposit(ctx, d); err != nil {
			t.Fatalf("CreateDeposit failed: %v", err)
		}
	}
	err := service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.MarkDepositCompleted(ctx, "P-done", time.Now().UTC())
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}

	open, err := service.ListOpenDeposits(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("ListOpenDeposits failed: %v", err)
	}
	if len(open) != 1 || open[0].PaymentId != "P-open" {
		t.Errorf("Expected only P-open, got %+v", open)
	}

	open, err = service.ListOpenDeposits(ctx, time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListOpenDeposits failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("Expected no deposits after the cutoff, got %d", len(open))
	}
}
