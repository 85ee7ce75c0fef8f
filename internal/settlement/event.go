package settlement

import (
	"encoding/json"
	"fmt"
	"strings"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// ErrMalformedEvent is a callback body that verified but cannot be understood
var ErrMalformedEvent = fmt.Errorf("%w: malformed settlement event", store.ErrInvalidRequest)

// Event is the part of a payment status callback the ledger acts on
type Event struct {
	PaymentId    string
	OrderId      string
	Status       models.DepositStatus
	ActuallyPaid decimal.Decimal
	PayCurrency  string
}

func parseEvent(payload []byte) (*Event, error) {
	doc, err := decodeDocument(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	paymentId, err := scalar(doc, "payment_id")
	if err != nil || paymentId == "" {
		return nil, fmt.Errorf("%w: payment_id missing", ErrMalformedEvent)
	}
	status, err := scalar(doc, "payment_status")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	event := &Event{
		PaymentId: paymentId,
		Status:    models.DepositStatus(strings.ToLower(status)),
	}
	if !event.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment_status %q", ErrMalformedEvent, status)
	}

	if event.OrderId, err = scalar(doc, "order_id"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.PayCurrency, err = scalar(doc, "pay_currency"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	paid, err := scalar(doc, "actually_paid")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	event.ActuallyPaid = decimal.Zero
	if paid != "" {
		if event.ActuallyPaid, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("%w: actually_paid %q", ErrMalformedEvent, paid)
		}
	}
	return event, nil
}

// scalar reads a string or number field as text. Absent and null read as "".
func scalar(doc map[string]any, key string) (string, error) {
	switch v := doc[key].(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("field %s has unexpected type %T", key, v)
	}
}
