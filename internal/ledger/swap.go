package ledger

import (
	"context"
	"fmt"

	"wallet-ledger-go/internal/currency"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// extra digits kept on the gross amount before the fee split truncates it
const grossGuardDigits = 10

type SwapRequest struct {
	UserId       string
	FromCurrency string
	ToCurrency   string
	FromAmount   decimal.Decimal
}

// SwapQuote is the priced conversion of one swap, before any balance moves
type SwapQuote struct {
	FromCurrency string
	ToCurrency   string
	FromAmount   decimal.Decimal
	Gross        decimal.Decimal
	Fee          decimal.Decimal
	ToAmount     decimal.Decimal
	PriceFrom    decimal.Decimal
	PriceTo      decimal.Decimal
}

// QuoteSwap prices a conversion with the current oracle quotes. Both the
// fee and the received amount are truncated to the destination precision.
func (s *Service) QuoteSwap(ctx context.Context, fromSymbol, toSymbol string, fromAmount decimal.Decimal) (*SwapQuote, error) {
	from, to, err := s.swapPair(fromSymbol, toSymbol)
	if err != nil {
		return nil, err
	}
	if err := from.ValidateAmount(fromAmount); err != nil {
		return nil, err
	}

	priceFrom, err := s.price(ctx, from.Symbol)
	if err != nil {
		return nil, err
	}
	priceTo, err := s.price(ctx, to.Symbol)
	if err != nil {
		return nil, err
	}

	gross, _ := fromAmount.Mul(priceFrom).QuoRem(priceTo, to.Precision+grossGuardDigits)
	fee := to.Truncate(gross.Mul(s.cfg.SwapFeeRate))
	toAmount := to.Truncate(gross.Sub(fee))
	if !toAmount.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s converts to nothing in %s", store.ErrInvalidAmount, fromAmount, from.Symbol, to.Symbol)
	}

	return &SwapQuote{
		FromCurrency: from.Symbol,
		ToCurrency:   to.Symbol,
		FromAmount:   fromAmount,
		Gross:        gross,
		Fee:          fee,
		ToAmount:     toAmount,
		PriceFrom:    priceFrom,
		PriceTo:      priceTo,
	}, nil
}

// Swap converts between two of the user's currencies at the quoted rate.
// The debit, the credit and the swap record commit together.
func (s *Service) Swap(ctx context.Context, req SwapRequest) (*models.SwapResult, error) {
	if req.UserId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidRequest)
	}
	quote, err := s.QuoteSwap(ctx, req.FromCurrency, req.ToCurrency, req.FromAmount)
	if err != nil {
		logOutcome("swap", err, zap.String("user_id", req.UserId),
			zap.String("from_currency", req.FromCurrency), zap.String("to_currency", req.ToCurrency))
		return nil, err
	}

	var record *models.Transaction
	err = s.execute(ctx, "swap", []string{req.UserId}, func(ctx context.Context, tx store.Tx) error {
		sheet, err := tx.Sheet(ctx, req.UserId)
		if err != nil {
			return err
		}
		if err := sheet.Debit(quote.FromCurrency, quote.FromAmount); err != nil {
			return err
		}
		if err := sheet.Credit(quote.ToCurrency, quote.ToAmount); err != nil {
			return err
		}

		record = &models.Transaction{
			UserId:         req.UserId,
			Type:           models.TransactionTypeSwap,
			Status:         models.TransactionStatusCompleted,
			FromCurrency:   quote.FromCurrency,
			ToCurrency:     quote.ToCurrency,
			Amount:         quote.FromAmount,
			ReceivedAmount: quote.ToAmount,
			Fee:            quote.Fee,
			Metadata: map[string]string{
				"price_from": quote.PriceFrom.String(),
				"price_to":   quote.PriceTo.String(),
				"fee_rate":   s.cfg.SwapFeeRate.String(),
			},
		}
		return tx.InsertTransaction(ctx, record)
	})
	if err != nil {
		logOutcome("swap", err, zap.String("user_id", req.UserId),
			zap.String("from_currency", quote.FromCurrency), zap.String("to_currency", quote.ToCurrency),
			zap.String("from_amount", quote.FromAmount.String()))
		return nil, err
	}

	zap.L().Info("Swap completed",
		zap.String("user_id", req.UserId),
		zap.String("transaction_id", record.Id),
		zap.String("from_currency", quote.FromCurrency),
		zap.String("to_currency", quote.ToCurrency),
		zap.String("from_amount", quote.FromAmount.String()),
		zap.String("to_amount", quote.ToAmount.String()),
		zap.String("fee", quote.Fee.String()))

	return &models.SwapResult{
		Transaction: record,
		FromAmount:  quote.FromAmount,
		ToAmount:    quote.ToAmount,
		Fee:         quote.Fee,
		PriceFrom:   quote.PriceFrom,
		PriceTo:     quote.PriceTo,
	}, nil
}

func (s *Service) swapPair(fromSymbol, toSymbol string) (currency.Currency, currency.Currency, error) {
	from, err := s.currencies.Get(fromSymbol)
	if err != nil {
		return currency.Currency{}, currency.Currency{}, err
	}
	to, err := s.currencies.Get(toSymbol)
	if err != nil {
		return currency.Currency{}, currency.Currency{}, err
	}
	if from.Symbol == to.Symbol {
		return currency.Currency{}, currency.Currency{}, fmt.Errorf("%w: cannot swap %s into itself", store.ErrInvalidCurrency, from.Symbol)
	}
	return from, to, nil
}

// price never guesses: any oracle failure or non-positive quote fails the swap
func (s *Service) price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p, err := s.oracle.GetPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", store.ErrPriceUnavailable, symbol, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s quoted at %s", store.ErrPriceUnavailable, symbol, p)
	}
	return p, nil
}
