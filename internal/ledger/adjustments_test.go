package ledger

import (
	"context"
	"testing"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adjustment(direction models.AdjustmentDirection, amount string) AdjustmentRequest {
	return AdjustmentRequest{
		UserId:     "alice",
		Currency:   "BTC",
		Amount:     decimal.RequireFromString(amount),
		Direction:  direction,
		Reason:     "support ticket 42",
		OperatorId: "admin-1",
	}
}

func TestAdjustBalance_CreditAndDebit(t *testing.T) {
	l := newTestLedger(t, Config{})
	ctx := context.Background()

	credit, err := l.svc.AdjustBalance(ctx, adjustment(models.AdjustmentCredit, "2"))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeAdminAdjustment, credit.Type)
	assert.Equal(t, "admin-1", credit.Metadata["operator_id"])
	assert.Equal(t, "support ticket 42", credit.Metadata["reason"])

	_, err = l.svc.AdjustBalance(ctx, adjustment(models.AdjustmentDebit, "0.5"))
	require.NoError(t, err)

	l.requireBalance(t, "alice", "BTC", "1.5", "0")
	l.requireReconciled(t, "alice", "BTC")
}

func TestAdjustBalance_FailsClosed(t *testing.T) {
	l := newTestLedger(t, Config{})
	ctx := context.Background()
	l.fund(t, "alice", "BTC", "1")

	_, err := l.svc.AdjustBalance(ctx, adjustment(models.AdjustmentDebit, "3"))
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)
	l.requireBalance(t, "alice", "BTC", "1", "0")
}

func TestAdjustBalance_ClampWhenAllowed(t *testing.T) {
	l := newTestLedger(t, Config{AllowAdjustmentClamp: true})
	ctx := context.Background()
	l.fund(t, "alice", "BTC", "1")

	record, err := l.svc.AdjustBalance(ctx, adjustment(models.AdjustmentDebit, "3"))
	require.NoError(t, err)
	assert.Equal(t, "1", record.Amount.String())
	assert.Equal(t, "true", record.Metadata["clamped"])
	assert.Equal(t, "3", record.Metadata["requested_amount"])
	l.requireBalance(t, "alice", "BTC", "0", "0")
	l.requireReconciled(t, "alice", "BTC")
}

func TestAdjustBalance_Validation(t *testing.T) {
	l := newTestLedger(t, Config{})
	ctx := context.Background()

	noReason := adjustment(models.AdjustmentCredit, "1")
	noReason.Reason = ""
	_, err := l.svc.AdjustBalance(ctx, noReason)
	assert.ErrorIs(t, err, store.ErrInvalidAdjustment)

	noOperator := adjustment(models.AdjustmentCredit, "1")
	noOperator.OperatorId = ""
	_, err = l.svc.AdjustBalance(ctx, noOperator)
	assert.ErrorIs(t, err, store.ErrInvalidAdjustment)

	_, err = l.svc.AdjustBalance(ctx, adjustment("sideways", "1"))
	assert.ErrorIs(t, err, store.ErrInvalidAdjustment)

	_, err = l.svc.AdjustBalance(ctx, adjustment(models.AdjustmentCredit, "-1"))
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}
