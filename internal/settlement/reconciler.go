/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package settlement

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger-go/internal/currency"
	"wallet-ledger-go/internal/metrics"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DepositApplier credits a completed deposit exactly once
type DepositApplier interface {
	ApplyDeposit(ctx context.Context, paymentId string) (*models.DepositResult, error)
}

// Outcome reports what one callback did
type Outcome struct {
	PaymentId        string
	Status           models.DepositStatus
	Credited         bool
	AlreadyProcessed bool
	TransactionId    string
}

type Config struct {
	CallbackUrl string
}

// Reconciler is the only way external funds reach user balances
type Reconciler struct {
	store      store.LedgerStore
	applier    DepositApplier
	verifier   *SignatureVerifier
	processor  PaymentProcessor
	currencies *currency.Registry
	cfg        Config
}

func NewReconciler(ledgerStore store.LedgerStore, applier DepositApplier, verifier *SignatureVerifier,
	processor PaymentProcessor, currencies *currency.Registry, cfg Config) *Reconciler {
	return &Reconciler{
		store:      ledgerStore,
		applier:    applier,
		verifier:   verifier,
		processor:  processor,
		currencies: currencies,
		cfg:        cfg,
	}
}

// event sources, used as the metric label
const (
	sourceCallback = "callback"
	sourcePoll     = "poll"
)

// HandleEvent verifies and applies one payment status callback. Storage
// errors are returned unchanged so the processor redelivers.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signature string) (outcome *Outcome, err error) {
	defer func() {
		metrics.SettlementEventsTotal.WithLabelValues(sourceCallback, eventOutcome(outcome, err)).Inc()
	}()

	if err := r.verifier.Verify(payload, signature); err != nil {
		zap.L().Warn("Rejected payment callback with invalid signature",
			zap.Bool("security", true),
			zap.Int("payload_bytes", len(payload)),
			zap.Error(err))
		return nil, err
	}

	event, err := parseEvent(payload)
	if err != nil {
		zap.L().Warn("Rejected malformed payment callback", zap.Error(err))
		return nil, err
	}

	return r.apply(ctx, event)
}

// ApplyStatus applies a status read directly from the processor's API. It
// takes the same path as a verified callback.
func (r *Reconciler) ApplyStatus(ctx context.Context, event *Event) (outcome *Outcome, err error) {
	defer func() {
		metrics.SettlementEventsTotal.WithLabelValues(sourcePoll, eventOutcome(outcome, err)).Inc()
	}()

	if event == nil || event.PaymentId == "" || !event.Status.Valid() {
		return nil, fmt.Errorf("%w: status without payment id or valid status", ErrMalformedEvent)
	}
	return r.apply(ctx, event)
}

func (r *Reconciler) apply(ctx context.Context, event *Event) (*Outcome, error) {
	deposit, err := r.store.GetDepositByPaymentId(ctx, event.PaymentId)
	if err != nil {
		if errors.Is(err, store.ErrUnknownPayment) {
			zap.L().Warn("Payment status for unknown payment",
				zap.Bool("security", true),
				zap.String("payment_id", event.PaymentId),
				zap.String("order_id", event.OrderId))
		}
		return nil, err
	}

	outcome := &Outcome{PaymentId: event.PaymentId, Status: event.Status}

	if deposit.CompletedAt != nil && event.Status != models.DepositStatusFinished {
		zap.L().Info("Ignoring status change for completed deposit",
			zap.String("payment_id", event.PaymentId),
			zap.String("stored_status", string(deposit.Status)),
			zap.String("event_status", string(event.Status)))
		outcome.Status = deposit.Status
		outcome.AlreadyProcessed = true
		return outcome, nil
	}

	if deposit.Status != event.Status || !deposit.ActuallyPaid.Equal(event.ActuallyPaid) {
		err = r.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.UpdateDepositStatus(ctx, event.PaymentId, event.Status, event.ActuallyPaid)
		})
		if err != nil {
			zap.L().Error("Failed to mirror deposit status",
				zap.String("payment_id", event.PaymentId),
				zap.String("status", string(event.Status)),
				zap.Error(err))
			return nil, err
		}
		zap.L().Info("Deposit status updated",
			zap.String("payment_id", event.PaymentId),
			zap.String("user_id", deposit.UserId),
			zap.String("from", string(deposit.Status)),
			zap.String("to", string(event.Status)),
			zap.String("actually_paid", event.ActuallyPaid.String()))
	}

	if event.Status != models.DepositStatusFinished {
		return outcome, nil
	}

	result, err := r.applier.ApplyDeposit(ctx, event.PaymentId)
	if err != nil {
		return nil, err
	}
	outcome.AlreadyProcessed = result.AlreadyProcessed
	outcome.Credited = !result.AlreadyProcessed
	outcome.TransactionId = result.TransactionId
	return outcome, nil
}

// OpenDeposit creates a payment at the processor and records the pending deposit
func (r *Reconciler) OpenDeposit(ctx context.Context, userId, symbol string, amount decimal.Decimal, payCurrency string) (*models.Deposit, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidRequest)
	}
	cur, err := r.currencies.Get(symbol)
	if err != nil {
		return nil, err
	}
	if err := cur.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if payCurrency == "" {
		payCurrency = cur.Symbol
	}

	orderId := uuid.New().String()
	invoice, err := r.processor.CreatePayment(ctx, PaymentRequest{
		OrderId:          orderId,
		PriceAmount:      amount,
		PriceCurrency:    cur.Symbol,
		PayCurrency:      payCurrency,
		OrderDescription: fmt.Sprintf("Deposit %s %s", amount, cur.Symbol),
		CallbackUrl:      r.cfg.CallbackUrl,
	})
	if err != nil {
		zap.L().Error("Payment processor rejected deposit",
			zap.String("user_id", userId),
			zap.String("currency", cur.Symbol),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	status := models.DepositStatus(invoice.Status)
	if !status.Valid() {
		status = models.DepositStatusWaiting
	}
	deposit := &models.Deposit{
		UserId:       userId,
		OrderId:      orderId,
		PaymentId:    invoice.PaymentId,
		Currency:     cur.Symbol,
		Amount:       amount,
		PayCurrency:  invoice.PayCurrency,
		PayAmount:    invoice.PayAmount,
		PayAddress:   invoice.PayAddress,
		ActuallyPaid: decimal.Zero,
		Status:       status,
	}
	if err := r.store.CreateDeposit(ctx, deposit); err != nil {
		return nil, err
	}
	return deposit, nil
}

func eventOutcome(outcome *Outcome, err error) string {
	switch {
	case errors.Is(err, store.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, store.ErrUnknownPayment):
		return "unknown_payment"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed"
	case err != nil:
		return "error"
	case outcome.Credited:
		return "credited"
	case outcome.AlreadyProcessed:
		return "already_processed"
	}
	return "status_updated"
}
