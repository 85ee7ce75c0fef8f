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

package listener

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/settlement"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OpenDepositLister returns deposits that may still be waiting for a
// status the ledger never received.
type OpenDepositLister interface {
	ListOpenDeposits(ctx context.Context, since time.Time, limit int) ([]models.Deposit, error)
}

// StatusApplier applies a processor status through the settlement path
type StatusApplier interface {
	ApplyStatus(ctx context.Context, event *settlement.Event) (*settlement.Outcome, error)
}

// DepositPollerConfig contains configuration for DepositPoller
type DepositPollerConfig struct {
	Store           OpenDepositLister
	Source          settlement.PaymentStatusSource
	Applier         StatusApplier
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	BatchSize       int
	Concurrency     int
}

// DepositPoller asks the payment processor for the status of open deposits
// so a lost callback does not leave a paid deposit uncredited.
type DepositPoller struct {
	store   OpenDepositLister
	source  settlement.PaymentStatusSource
	applier StatusApplier

	lookbackWindow  time.Duration
	pollingInterval time.Duration
	batchSize       int
	concurrency     int

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// SweepStats summarises one pass over the open deposits
type SweepStats struct {
	Checked  int
	Updated  int
	Credited int
	Failed   int
}

func NewDepositPoller(cfg DepositPollerConfig) *DepositPoller {
	if cfg.LookbackWindow <= 0 {
		cfg.LookbackWindow = 24 * time.Hour
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &DepositPoller{
		store:           cfg.Store,
		source:          cfg.Source,
		applier:         cfg.Applier,
		lookbackWindow:  cfg.LookbackWindow,
		pollingInterval: cfg.PollingInterval,
		batchSize:       cfg.BatchSize,
		concurrency:     cfg.Concurrency,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start runs a recovery sweep and then polls in the background
func (p *DepositPoller) Start(ctx context.Context) error {
	zap.L().Info("Starting deposit poller")

	if err := p.performStartupRecovery(ctx); err != nil {
		zap.L().Error("Startup recovery failed", zap.Error(err))
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	go p.pollLoop(ctx)

	zap.L().Info("Deposit poller started successfully",
		zap.Duration("polling_interval", p.pollingInterval),
		zap.Duration("lookback_window", p.lookbackWindow))
	return nil
}

// Stop waits for the current sweep to finish. Only valid after Start succeeded.
func (p *DepositPoller) Stop() {
	zap.L().Info("Stopping deposit poller")
	p.stopOnce.Do(func() { close(p.stopChan) })
	<-p.doneChan
	zap.L().Info("Deposit poller stopped")
}

// pollLoop runs the main polling loop
func (p *DepositPoller) pollLoop(ctx context.Context) {
	defer close(p.doneChan)

	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := p.Sweep(ctx)
			if err != nil {
				zap.L().Error("Deposit sweep failed", zap.Error(err))
				continue
			}
			if stats.Checked > 0 {
				zap.L().Info("Deposit sweep finished",
					zap.Int("checked", stats.Checked),
					zap.Int("updated", stats.Updated),
					zap.Int("credited", stats.Credited),
					zap.Int("failed", stats.Failed))
			}
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// performStartupRecovery catches up on deposits that changed while the
// process was down. Losing most of them points at a config or outage problem.
func (p *DepositPoller) performStartupRecovery(ctx context.Context) error {
	zap.L().Info("Starting startup recovery process",
		zap.Duration("lookback_window", p.lookbackWindow))

	stats, err := p.Sweep(ctx)
	if err != nil {
		return err
	}

	if stats.Failed > 0 {
		zap.L().Warn("Startup recovery completed with some failures",
			zap.Int("checked", stats.Checked),
			zap.Int("credited", stats.Credited),
			zap.Int("failed", stats.Failed))

		if stats.Failed > stats.Checked/2 {
			return fmt.Errorf("recovery failed for majority of deposits (%d/%d)", stats.Failed, stats.Checked)
		}
		return nil
	}

	zap.L().Info("Startup recovery completed successfully",
		zap.Int("checked", stats.Checked),
		zap.Int("updated", stats.Updated),
		zap.Int("credited", stats.Credited))
	return nil
}

// Sweep checks every open deposit inside the lookback window once
func (p *DepositPoller) Sweep(ctx context.Context) (SweepStats, error) {
	since := time.Now().UTC().Add(-p.lookbackWindow)
	deposits, err := p.store.ListOpenDeposits(ctx, since, p.batchSize)
	if err != nil {
		return SweepStats{}, fmt.Errorf("failed to list open deposits: %w", err)
	}

	var updated, credited, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, deposit := range deposits {
		deposit := deposit
		g.Go(func() error {
			changed, wasCredited, err := p.checkDeposit(gctx, deposit)
			switch {
			case err != nil:
				failed.Add(1)
				zap.L().Error("Failed to check deposit status",
					zap.String("payment_id", deposit.PaymentId),
					zap.String("user_id", deposit.UserId),
					zap.Error(err))
			case wasCredited:
				credited.Add(1)
			case changed:
				updated.Add(1)
			}
			// one bad deposit never cancels the rest
			return nil
		})
	}
	_ = g.Wait()

	return SweepStats{
		Checked:  len(deposits),
		Updated:  int(updated.Load()),
		Credited: int(credited.Load()),
		Failed:   int(failed.Load()),
	}, nil
}

func (p *DepositPoller) checkDeposit(ctx context.Context, deposit models.Deposit) (changed, credited bool, err error) {
	event, err := p.source.GetPaymentStatus(ctx, deposit.PaymentId)
	if err != nil {
		return false, false, err
	}
	if event.PaymentId != deposit.PaymentId {
		return false, false, fmt.Errorf("%w: processor answered for payment %s", settlement.ErrMalformedEvent, event.PaymentId)
	}
	if event.Status == deposit.Status && event.ActuallyPaid.Equal(deposit.ActuallyPaid) &&
		event.Status != models.DepositStatusFinished {
		return false, false, nil
	}

	outcome, err := p.applier.ApplyStatus(ctx, event)
	if err != nil {
		return false, false, fmt.Errorf("failed to apply status %s: %w", event.Status, err)
	}

	if outcome.Credited {
		zap.L().Info("Recovered deposit credited by poller",
			zap.String("payment_id", deposit.PaymentId),
			zap.String("user_id", deposit.UserId),
			zap.String("transaction_id", outcome.TransactionId))
	}
	return true, outcome.Credited, nil
}
