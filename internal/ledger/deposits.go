package ledger

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ApplyDeposit credits a deposit exactly once. The payment id is the
// idempotency key: replays return the original transaction with
// AlreadyProcessed set and no error.
func (s *Service) ApplyDeposit(ctx context.Context, paymentId string) (*models.DepositResult, error) {
	if paymentId == "" {
		return nil, fmt.Errorf("%w: payment id is required", store.ErrInvalidRequest)
	}

	deposit, err := s.store.GetDepositByPaymentId(ctx, paymentId)
	if err != nil {
		return nil, err
	}
	cur, err := s.currencies.Get(deposit.Currency)
	if err != nil {
		return nil, err
	}
	if err := cur.ValidateAmount(deposit.Amount); err != nil {
		return nil, err
	}

	result := &models.DepositResult{
		PaymentId: paymentId,
		UserId:    deposit.UserId,
		Currency:  cur.Symbol,
		Amount:    deposit.Amount,
	}

	err = s.execute(ctx, "apply_deposit", []string{deposit.UserId}, func(ctx context.Context, tx store.Tx) error {
		result.AlreadyProcessed = false
		result.TransactionId = ""

		existing, err := tx.FindTransaction(ctx, models.TransactionTypeDeposit, paymentId)
		if err == nil {
			result.AlreadyProcessed = true
			result.TransactionId = existing.Id
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		current, err := tx.GetDepositByPaymentId(ctx, paymentId)
		if err != nil {
			return err
		}
		if current.CompletedAt != nil {
			result.AlreadyProcessed = true
			return nil
		}

		sheet, err := tx.Sheet(ctx, deposit.UserId)
		if err != nil {
			return err
		}
		if err := sheet.Credit(cur.Symbol, deposit.Amount); err != nil {
			return err
		}

		t := &models.Transaction{
			UserId:            deposit.UserId,
			Type:              models.TransactionTypeDeposit,
			Status:            models.TransactionStatusCompleted,
			ToCurrency:        cur.Symbol,
			Amount:            deposit.Amount,
			ReceivedAmount:    deposit.Amount,
			ExternalReference: paymentId,
			Metadata: map[string]string{
				"order_id":      deposit.OrderId,
				"pay_currency":  deposit.PayCurrency,
				"actually_paid": current.ActuallyPaid.String(),
			},
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if err := tx.MarkDepositCompleted(ctx, paymentId, s.now()); err != nil {
			return err
		}
		result.TransactionId = t.Id
		return nil
	})
	if err != nil {
		// a concurrent delivery won the race and committed first
		if errors.Is(err, store.ErrAlreadyProcessed) || errors.Is(err, store.ErrDuplicateTransaction) {
			result.AlreadyProcessed = true
			result.TransactionId = ""
			return result, nil
		}
		logOutcome("apply_deposit", err, zap.String("payment_id", paymentId), zap.String("user_id", deposit.UserId))
		return nil, err
	}

	if result.AlreadyProcessed {
		zap.L().Info("Deposit already credited",
			zap.String("payment_id", paymentId),
			zap.String("user_id", deposit.UserId),
			zap.String("transaction_id", result.TransactionId))
		return result, nil
	}

	zap.L().Info("Deposit credited",
		zap.String("payment_id", paymentId),
		zap.String("user_id", deposit.UserId),
		zap.String("currency", cur.Symbol),
		zap.String("amount", deposit.Amount.String()),
		zap.String("transaction_id", result.TransactionId))
	return result, nil
}
