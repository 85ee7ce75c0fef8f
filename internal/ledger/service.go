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

// Package ledger applies money movements to user balances. Every operation
// runs under the affected users' locks and commits its balance changes and
// records in one storage transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger-go/internal/currency"
	"wallet-ledger-go/internal/locker"
	"wallet-ledger-go/internal/metrics"
	"wallet-ledger-go/internal/pricing"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	SwapFeeRate          decimal.Decimal
	AllowAdjustmentClamp bool
	MaxRetries           int
}

type Service struct {
	store      store.LedgerStore
	locker     locker.Locker
	currencies *currency.Registry
	oracle     pricing.Oracle
	cfg        Config
	now        func() time.Time
}

func NewService(ledgerStore store.LedgerStore, lk locker.Locker, currencies *currency.Registry, oracle pricing.Oracle, cfg Config) (*Service, error) {
	if ledgerStore == nil || lk == nil || currencies == nil || oracle == nil {
		return nil, fmt.Errorf("ledger service requires a store, locker, currency registry and price oracle")
	}
	if cfg.SwapFeeRate.IsNegative() || cfg.SwapFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("swap fee rate must be in [0, 1), got %s", cfg.SwapFeeRate)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	return &Service{
		store:      ledgerStore,
		locker:     lk,
		currencies: currencies,
		oracle:     oracle,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// execute locks userIds, then runs fn in a storage transaction. fn may run
// more than once when the balance rows changed underneath it, so it must not
// carry state between attempts.
func (s *Service) execute(ctx context.Context, operation string, userIds []string, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.LedgerOperationsTotal.WithLabelValues(operation, metrics.Outcome(err, classify)).Inc()
		metrics.LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	keys := make([]string, 0, len(userIds))
	for _, userId := range userIds {
		keys = append(keys, locker.UserKey(userId))
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return fmt.Errorf("failed to lock %v: %w", userIds, err)
	}
	defer unlock()

	// Once the locks are held the operation runs to completion.
	ctx = context.WithoutCancel(ctx)

	for attempt := 1; ; attempt++ {
		err = s.store.RunInTx(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrConcurrentModification) || attempt >= s.cfg.MaxRetries {
			return err
		}
		zap.L().Warn("Retrying ledger operation after concurrent modification",
			zap.String("operation", operation),
			zap.Strings("user_ids", userIds),
			zap.Int("attempt", attempt))
	}
}

// classify maps an error to its metric label
func classify(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, store.ErrInsufficientFrozen):
		return "insufficient_frozen"
	case errors.Is(err, store.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, store.ErrInvalidCurrency):
		return "invalid_currency"
	case errors.Is(err, store.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, store.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, store.ErrUnknownPayment):
		return "unknown_payment"
	case errors.Is(err, store.ErrPriceUnavailable):
		return "price_unavailable"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalidRequest), errors.Is(err, store.ErrInvalidAdjustment):
		return "invalid_request"
	case errors.Is(err, store.ErrConcurrentModification):
		return "conflict"
	}
	return ""
}

// logOutcome logs expected domain rejections quietly and everything else loudly
func logOutcome(operation string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", operation), zap.Error(err))
	if classify(err) != "" {
		zap.L().Info("Ledger operation rejected", fields...)
		return
	}
	zap.L().Error("Ledger operation failed", fields...)
}
