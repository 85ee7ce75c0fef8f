package settlement

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wallet-ledger-go/internal/models"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// PaymentProcessor opens payments that users settle on-chain. Funds only
// enter the ledger later, through signed status callbacks.
type PaymentProcessor interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentInvoice, error)
}

// PaymentStatusSource reads a payment's current state directly from the
// processor, for deposits whose callbacks never arrived.
type PaymentStatusSource interface {
	GetPaymentStatus(ctx context.Context, paymentId string) (*Event, error)
}

type PaymentRequest struct {
	OrderId          string
	PriceAmount      decimal.Decimal
	PriceCurrency    string
	PayCurrency      string
	OrderDescription string
	CallbackUrl      string
}

type PaymentInvoice struct {
	PaymentId   string
	Status      string
	PayAddress  string
	PayAmount   decimal.Decimal
	PayCurrency string
}

// NowPaymentsClient talks to the NOWPayments REST API. Calls go through a
// circuit breaker so an outage fails fast instead of piling up requests.
type NowPaymentsClient struct {
	baseUrl    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

var (
	_ PaymentProcessor    = (*NowPaymentsClient)(nil)
	_ PaymentStatusSource = (*NowPaymentsClient)(nil)
)

func NewNowPaymentsClient(baseUrl, apiKey string, timeout time.Duration) *NowPaymentsClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "nowpayments",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("Payment processor circuit changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &NowPaymentsClient{
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

type createPaymentBody struct {
	PriceAmount      rawNumber `json:"price_amount"`
	PriceCurrency    string    `json:"price_currency"`
	PayCurrency      string    `json:"pay_currency"`
	OrderId          string    `json:"order_id"`
	OrderDescription string    `json:"order_description,omitempty"`
	IpnCallbackUrl   string    `json:"ipn_callback_url,omitempty"`
}

type paymentResponse struct {
	PaymentId     flexString `json:"payment_id"`
	PaymentStatus string     `json:"payment_status"`
	PayAddress    string     `json:"pay_address"`
	PayAmount     flexString `json:"pay_amount"`
	PayCurrency   string     `json:"pay_currency"`
	ActuallyPaid  flexString `json:"actually_paid"`
	OrderId       flexString `json:"order_id"`
}

func (c *NowPaymentsClient) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentInvoice, error) {
	body, err := json.Marshal(createPaymentBody{
		PriceAmount:      rawNumber(req.PriceAmount.String()),
		PriceCurrency:    strings.ToLower(req.PriceCurrency),
		PayCurrency:      strings.ToLower(req.PayCurrency),
		OrderId:          req.OrderId,
		OrderDescription: req.OrderDescription,
		IpnCallbackUrl:   req.CallbackUrl,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode payment request: %w", err)
	}

	parsed, err := c.call(ctx, http.MethodPost, "/v1/payment", body)
	if err != nil {
		return nil, err
	}
	payAmount, err := optionalDecimal("pay_amount", parsed.PayAmount)
	if err != nil {
		return nil, err
	}

	return &PaymentInvoice{
		PaymentId:   string(parsed.PaymentId),
		Status:      parsed.PaymentStatus,
		PayAddress:  parsed.PayAddress,
		PayAmount:   payAmount,
		PayCurrency: strings.ToUpper(parsed.PayCurrency),
	}, nil
}

// GetPaymentStatus fetches the processor's view of one payment
func (c *NowPaymentsClient) GetPaymentStatus(ctx context.Context, paymentId string) (*Event, error) {
	parsed, err := c.call(ctx, http.MethodGet, "/v1/payment/"+url.PathEscape(paymentId), nil)
	if err != nil {
		return nil, err
	}

	status := models.DepositStatus(strings.ToLower(parsed.PaymentStatus))
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment_status %q", ErrMalformedEvent, parsed.PaymentStatus)
	}
	paid, err := optionalDecimal("actually_paid", parsed.ActuallyPaid)
	if err != nil {
		return nil, err
	}

	return &Event{
		PaymentId:    string(parsed.PaymentId),
		OrderId:      string(parsed.OrderId),
		Status:       status,
		ActuallyPaid: paid,
		PayCurrency:  strings.ToUpper(parsed.PayCurrency),
	}, nil
}

// call sends one authenticated request through the breaker and decodes the
// payment object every endpoint here returns.
func (c *NowPaymentsClient) call(ctx context.Context, method, path string, body []byte) (*paymentResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("payment processor api key is not configured")
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if err != nil {
		return nil, err
	}

	var parsed paymentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unable to decode payment response: %w", err)
	}
	if parsed.PaymentId == "" {
		return nil, fmt.Errorf("payment response has no payment_id")
	}
	return &parsed, nil
}

func (c *NowPaymentsClient) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reader)
	if err != nil {
		return nil, fmt.Errorf("unable to build payment request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("unable to read payment response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment processor returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func optionalDecimal(field string, value flexString) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

// rawNumber encodes as an unquoted JSON number
type rawNumber string

func (n rawNumber) MarshalJSON() ([]byte, error) {
	return []byte(n), nil
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*f = flexString(unquoted)
		return nil
	}
	*f = flexString(s)
	return nil
}
