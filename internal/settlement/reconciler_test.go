package settlement

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wallet-ledger-go/internal/currency"
	"wallet-ledger-go/internal/database"
	"wallet-ledger-go/internal/ledger"
	"wallet-ledger-go/internal/locker"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/pricing"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "ipn-secret"

type fakeProcessor struct {
	invoice *PaymentInvoice
	err     error
	last    PaymentRequest
}

func (f *fakeProcessor) CreatePayment(_ context.Context, req PaymentRequest) (*PaymentInvoice, error) {
	f.last = req
	return f.invoice, f.err
}

type harness struct {
	reconciler *Reconciler
	db         *database.Service
	verifier   *SignatureVerifier
	processor  *fakeProcessor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	registry, err := currency.Parse([]byte(`
currencies:
  - symbol: BTC
    precision: 8
    reference_price: "60000"
`))
	require.NoError(t, err)

	svc, err := ledger.NewService(db, locker.NewKeyedMutex(), registry, pricing.NewStaticOracle(registry.ReferencePrices()),
		ledger.Config{SwapFeeRate: decimal.RequireFromString("0.001"), MaxRetries: 3})
	require.NoError(t, err)

	verifier := NewSignatureVerifier(testSecret)
	processor := &fakeProcessor{}
	return &harness{
		reconciler: NewReconciler(db, svc, verifier, processor, registry, Config{CallbackUrl: "https://example.test/webhooks/nowpayments"}),
		db:         db,
		verifier:   verifier,
		processor:  processor,
	}
}

func (h *harness) openDeposit(t *testing.T, paymentId, amount string) {
	t.Helper()
	require.NoError(t, h.db.CreateDeposit(context.Background(), &models.Deposit{
		UserId:    "alice",
		OrderId:   "order-" + paymentId,
		PaymentId: paymentId,
		Currency:  "BTC",
		Amount:    decimal.RequireFromString(amount),
	}))
}

func (h *harness) signed(t *testing.T, paymentId, status, paid string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"payment_id":%q,"payment_status":%q,"actually_paid":%s,"pay_currency":"btc","order_id":"order-%s"}`,
		paymentId, status, paid, paymentId))
	signature, err := h.verifier.Sign(payload)
	require.NoError(t, err)
	return payload, signature
}

func (h *harness) available(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := h.db.GetBalance(context.Background(), "alice", "BTC")
	require.NoError(t, err)
	return b.Available
}

func TestHandleEvent_DuplicateFinishedCreditsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.openDeposit(t, "P1", "0.5")

	payload, signature := h.signed(t, "P1", "finished", "0.5")

	first, err := h.reconciler.HandleEvent(ctx, payload, signature)
	require.NoError(t, err)
	assert.True(t, first.Credited)
	assert.False(t, first.AlreadyProcessed)

	second, err := h.reconciler.HandleEvent(ctx, payload, signature)
	require.NoError(t, err)
	assert.False(t, second.Credited)
	assert.True(t, second.AlreadyProcessed)

	assert.Equal(t, "0.5", h.available(t).String())
	history, err := h.db.GetTransactionHistory(ctx, "alice", "BTC", 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHandleEvent_ConcurrentDuplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.openDeposit(t, "P1", "0.5")
	payload, signature := h.signed(t, "P1", "finished", "0.5")

	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := h.reconciler.HandleEvent(ctx, payload, signature)
			if !assert.NoError(t, err) {
				return
			}
			if outcome.Credited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, credited)
	assert.Equal(t, "0.5", h.available(t).String())
}

func TestHandleEvent_StatusProgression(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.openDeposit(t, "P1", "0.5")

	for _, status := range []string{"waiting", "confirming", "confirmed", "sending"} {
		payload, signature := h.signed(t, "P1", status, "0")
		outcome, err := h.reconciler.HandleEvent(ctx, payload, signature)
		require.NoError(t, err)
		assert.False(t, outcome.Credited, status)

		deposit, err := h.db.GetDepositByPaymentId(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, models.DepositStatus(status), deposit.Status)
		assert.Nil(t, deposit.CompletedAt)
	}
	assert.True(t, h.available(t).IsZero())

	payload, signature := h.signed(t, "P1", "finished", "0.5")
	outcome, err := h.reconciler.HandleEvent(ctx, payload, signature)
	require.NoError(t, err)
	assert.True(t, outcome.Credited)

	// a late status after completion changes nothing
	payload, signature = h.signed(t, "P1", "refunded", "0.5")
	outcome, err = h.reconciler.HandleEvent(ctx, payload, signature)
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyProcessed)
	assert.Equal(t, models.DepositStatusFinished, outcome.Status)

	deposit, err := h.db.GetDepositByPaymentId(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusFinished, deposit.Status)
	assert.Equal(t, "0.5", h.available(t).String())
}

func TestHandleEvent_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.openDeposit(t, "P1", "0.5")

	payload, _ := h.signed(t, "P1", "finished", "0.5")
	_, err := h.reconciler.HandleEvent(ctx, payload, "deadbeef")
	assert.ErrorIs(t, err, store.ErrInvalidSignature)

	unknown, signature := h.signed(t, "P9", "finished", "1")
	_, err = h.reconciler.HandleEvent(ctx, unknown, signature)
	assert.ErrorIs(t, err, store.ErrUnknownPayment)

	malformed := []byte(`{"payment_status":"finished"}`)
	signature, err = h.verifier.Sign(malformed)
	require.NoError(t, err)
	_, err = h.reconciler.HandleEvent(ctx, malformed, signature)
	assert.ErrorIs(t, err, ErrMalformedEvent)

	assert.True(t, h.available(t).IsZero())
}

func TestOpenDeposit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.processor.invoice = &PaymentInvoice{
		PaymentId:   "5077125051",
		Status:      "waiting",
		PayAddress:  "bc1qaddress",
		PayAmount:   decimal.RequireFromString("0.25"),
		PayCurrency: "BTC",
	}

	deposit, err := h.reconciler.OpenDeposit(ctx, "alice", "btc", decimal.RequireFromString("0.25"), "")
	require.NoError(t, err)
	assert.Equal(t, "5077125051", deposit.PaymentId)
	assert.Equal(t, models.DepositStatusWaiting, deposit.Status)
	assert.Equal(t, "BTC", h.processor.last.PayCurrency)
	assert.Equal(t, deposit.OrderId, h.processor.last.OrderId)
	assert.Equal(t, "https://example.test/webhooks/nowpayments", h.processor.last.CallbackUrl)

	stored, err := h.db.GetDepositByPaymentId(ctx, "5077125051")
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.UserId)
	assert.Equal(t, "bc1qaddress", stored.PayAddress)

	h.processor.err = errors.New("processor down")
	_, err = h.reconciler.OpenDeposit(ctx, "alice", "BTC", decimal.RequireFromString("0.25"), "")
	assert.Error(t, err)

	_, err = h.reconciler.OpenDeposit(ctx, "alice", "XYZ", decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, store.ErrInvalidCurrency)
}

func TestApplyStatus_SharesCallbackPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.openDeposit(t, "P1", "0.5")

	polled := &Event{PaymentId: "P1", Status: models.DepositStatusFinished, ActuallyPaid: decimal.RequireFromString("0.5")}
	outcome, err := h.reconciler.ApplyStatus(ctx, polled)
	require.NoError(t, err)
	assert.True(t, outcome.Credited)

	// the callback arriving late is a no-op
	payload, signature := h.signed(t, "P1", "finished", "0.5")
	outcome, err = h.reconciler.HandleEvent(ctx, payload, signature)
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyProcessed)
	assert.Equal(t, "0.5", h.available(t).String())

	_, err = h.reconciler.ApplyStatus(ctx, &Event{PaymentId: "P404", Status: models.DepositStatusFinished})
	assert.ErrorIs(t, err, store.ErrUnknownPayment)

	_, err = h.reconciler.ApplyStatus(ctx, &Event{PaymentId: "P1", Status: "teleported"})
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
