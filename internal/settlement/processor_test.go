package settlement

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowPaymentsClient_CreatePayment(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("x-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payment_id":"5745459419","payment_status":"waiting","pay_address":"bc1qxyz","pay_amount":0.00016,"pay_currency":"btc"}`))
	}))
	defer server.Close()

	client := NewNowPaymentsClient(server.URL+"/", "api-key", time.Second)
	invoice, err := client.CreatePayment(context.Background(), PaymentRequest{
		OrderId:       "order-1",
		PriceAmount:   decimal.RequireFromString("10.5"),
		PriceCurrency: "USD",
		PayCurrency:   "BTC",
	})
	require.NoError(t, err)

	assert.Equal(t, "5745459419", invoice.PaymentId)
	assert.Equal(t, "bc1qxyz", invoice.PayAddress)
	assert.Equal(t, "0.00016", invoice.PayAmount.String())
	assert.Equal(t, "BTC", invoice.PayCurrency)
	assert.Equal(t, "usd", received["price_currency"])
	assert.Equal(t, "order-1", received["order_id"])
	assert.EqualValues(t, 10.5, received["price_amount"])
}

func TestNowPaymentsClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad currency"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewNowPaymentsClient(server.URL, "api-key", time.Second)
	_, err := client.CreatePayment(context.Background(), PaymentRequest{OrderId: "o", PriceAmount: decimal.NewFromInt(1)})
	assert.ErrorContains(t, err, "400")

	_, err = NewNowPaymentsClient(server.URL, "", time.Second).CreatePayment(context.Background(), PaymentRequest{})
	assert.Error(t, err)
}

func TestFlexString(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":12.5,"c":null}`), &v))
	assert.Equal(t, flexString("x"), v.A)
	assert.Equal(t, flexString("12.5"), v.B)
	assert.Equal(t, flexString(""), v.C)
}

func TestNowPaymentsClient_GetPaymentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment/5745459419", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"payment_id":5745459419,"payment_status":"finished","actually_paid":0.5,"pay_currency":"btc","order_id":"order-1"}`))
	}))
	defer server.Close()

	client := NewNowPaymentsClient(server.URL, "api-key", time.Second)
	event, err := client.GetPaymentStatus(context.Background(), "5745459419")
	require.NoError(t, err)

	assert.Equal(t, "5745459419", event.PaymentId)
	assert.Equal(t, "order-1", event.OrderId)
	assert.Equal(t, "finished", string(event.Status))
	assert.Equal(t, "0.5", event.ActuallyPaid.String())
	assert.Equal(t, "BTC", event.PayCurrency)
}

func TestNowPaymentsClient_GetPaymentStatusRejectsUnknownStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payment_id":"1","payment_status":"teleported"}`))
	}))
	defer server.Close()

	_, err := NewNowPaymentsClient(server.URL, "api-key", time.Second).GetPaymentStatus(context.Background(), "1")
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
