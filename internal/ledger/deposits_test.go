package ledger

import (
	"context"
	"sync"
	"testing"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDeposit_CreditsOnce(t *testing.T) {
	l := newTestLedger(t, Config{})
	ctx := context.Background()

	require.NoError(t, l.db.CreateDeposit(ctx, &models.Deposit{
		UserId:    "alice",
		OrderId:   "order-1",
		PaymentId: "P1",
		Currency:  "BTC",
		Amount:    decimal.RequireFromString("0.5"),
	}))

	first, err := l.svc.ApplyDeposit(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)
	assert.NotEmpty(t, first.TransactionId)

	second, err := l.svc.ApplyDeposit(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.TransactionId, second.TransactionId)

	l.requireBalance(t, "alice", "BTC", "0.5", "0")
	l.requireReconciled(t, "alice", "BTC")

	history, err := l.db.GetTransactionHistory(ctx, "alice", "BTC", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionTypeDeposit, history[0].Type)
	assert.Equal(t, "P1", history[0].ExternalReference)

	deposit, err := l.db.GetDepositByPaymentId(ctx, "P1")
	require.NoError(t, err)
	assert.NotNil(t, deposit.CompletedAt)
}

func TestApplyDeposit_ConcurrentDeliveries(t *testing.T) {
	l := newTestLedger(t, Config{})
	ctx := context.Background()

	require.NoError(t, l.db.CreateDeposit(ctx, &models.Deposit{
		UserId:    "alice",
		OrderId:   "order-1",
		PaymentId: "P1",
		Currency:  "BTC",
		Amount:    decimal.RequireFromString("0.5"),
	}))

	const deliveries = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := l.svc.ApplyDeposit(ctx, "P1")
			if !assert.NoError(t, err) {
				return
			}
			if !result.AlreadyProcessed {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, credited)
	l.requireBalance(t, "alice", "BTC", "0.5", "0")

	history, err := l.db.GetTransactionHistory(ctx, "alice", "BTC", 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApplyDeposit_UnknownPayment(t *testing.T) {
	l := newTestLedger(t, Config{})

	_, err := l.svc.ApplyDeposit(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrUnknownPayment)

	_, err = l.svc.ApplyDeposit(context.Background(), "")
	assert.ErrorIs(t, err, store.ErrInvalidRequest)
}
