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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"wallet-ledger-go/internal/common"
	"wallet-ledger-go/internal/config"
	"wallet-ledger-go/internal/ledger"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalFlags struct {
	action      string
	id          string
	userId      string
	currency    string
	amount      string
	fee         string
	destination string
	priority    string
	operator    string
	txHash      string
	reason      string
	status      string
	limit       int
}

func parseFlags() *withdrawalFlags {
	f := &withdrawalFlags{}
	flag.StringVar(&f.action, "action", "list", "One of: list, show, reserve, claim, complete, fail, cancel")
	flag.StringVar(&f.id, "id", "", "Withdrawal id (show, claim, complete, fail, cancel)")
	flag.StringVar(&f.userId, "user", "", "User id (reserve, cancel)")
	flag.StringVar(&f.currency, "currency", "", "Currency symbol, e.g. BTC (reserve)")
	flag.StringVar(&f.amount, "amount", "", "Amount to withdraw (reserve)")
	flag.StringVar(&f.fee, "fee", "", "Network fee; defaults to the configured fee for the currency (reserve)")
	flag.StringVar(&f.destination, "destination", "", "Destination address (reserve)")
	flag.StringVar(&f.priority, "priority", "normal", "low, normal or high (reserve)")
	flag.StringVar(&f.operator, "operator", "", "Operator id (claim, complete, fail)")
	flag.StringVar(&f.txHash, "tx-hash", "", "On-chain transaction hash (complete)")
	flag.StringVar(&f.reason, "reason", "", "Failure reason (fail)")
	flag.StringVar(&f.status, "status", "pending", "Status filter for list; empty lists everything")
	flag.IntVar(&f.limit, "limit", 50, "Maximum withdrawals to list")
	flag.Parse()
	return f
}

func parseDecimalFlag(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

// requireFlags takes name/value pairs and reports the first empty one
func requireFlags(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("--%s is required", pairs[i])
		}
	}
	return nil
}

func reserve(ctx context.Context, services *common.Services, f *withdrawalFlags) (*models.Withdrawal, error) {
	if err := requireFlags("user", f.userId, "currency", f.currency, "amount", f.amount, "destination", f.destination); err != nil {
		return nil, err
	}
	amount, err := parseDecimalFlag("amount", f.amount)
	if err != nil {
		return nil, err
	}

	var fee decimal.Decimal
	if f.fee != "" {
		if fee, err = parseDecimalFlag("fee", f.fee); err != nil {
			return nil, err
		}
	} else if fee, err = services.Ledger.QuoteWithdrawalFee(f.currency); err != nil {
		return nil, err
	}

	priority, ok := models.ParseWithdrawalPriority(f.priority)
	if !ok {
		return nil, fmt.Errorf("invalid priority %q", f.priority)
	}

	return services.Ledger.ReserveWithdrawal(ctx, ledger.WithdrawalRequest{
		UserId:    f.userId,
		Currency:  f.currency,
		Amount:    amount,
		Fee:       fee,
		ToAddress: f.destination,
		Priority:  priority,
	})
}

func transition(ctx context.Context, services *common.Services, f *withdrawalFlags) (*models.Withdrawal, error) {
	if err := requireFlags("id", f.id); err != nil {
		return nil, err
	}

	switch f.action {
	case "claim":
		if err := requireFlags("operator", f.operator); err != nil {
			return nil, err
		}
		return services.Ledger.ClaimWithdrawal(ctx, f.id, f.operator)
	case "complete":
		if err := requireFlags("operator", f.operator, "tx-hash", f.txHash); err != nil {
			return nil, err
		}
		return services.Ledger.CompleteWithdrawal(ctx, f.id, f.operator, f.txHash)
	case "fail":
		if err := requireFlags("operator", f.operator, "reason", f.reason); err != nil {
			return nil, err
		}
		return services.Ledger.FailWithdrawal(ctx, f.id, f.operator, f.reason)
	case "cancel":
		if err := requireFlags("user", f.userId); err != nil {
			return nil, err
		}
		return services.Ledger.CancelWithdrawal(ctx, f.id, f.userId)
	}
	return nil, fmt.Errorf("unknown action %q", f.action)
}

func printWithdrawal(title string, w *models.Withdrawal) {
	common.PrintHeader(title, common.DefaultWidth)
	fmt.Printf("Withdrawal:  %s\n", w.Id)
	fmt.Printf("User:        %s\n", w.UserId)
	fmt.Printf("Amount:      %s %s (fee %s)\n", w.Amount, w.Currency, w.Fee)
	fmt.Printf("Destination: %s\n", w.ToAddress)
	fmt.Printf("Status:      %s (priority %s)\n", w.Status, w.Priority)
	if w.ProcessedBy != "" {
		fmt.Printf("Operator:    %s\n", w.ProcessedBy)
	}
	if w.TxHash != "" {
		fmt.Printf("Tx hash:     %s\n", w.TxHash)
	}
	if w.FailureReason != "" {
		fmt.Printf("Reason:      %s\n", w.FailureReason)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func printQueue(withdrawals []models.Withdrawal, status string) {
	title := "WITHDRAWAL QUEUE"
	if status != "" {
		title = fmt.Sprintf("WITHDRAWAL QUEUE (%s)", status)
	}
	common.PrintHeader(title, common.WideWidth)
	for i, w := range withdrawals {
		fmt.Printf("%s %-11s %-8s %18s %-6s %-10s %s\n",
			common.BoxPrefix(i == len(withdrawals)-1),
			common.ShortId(w.Id),
			w.Priority,
			w.Amount.Add(w.Fee).String(),
			w.Currency,
			w.Status,
			w.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	common.PrintFooter(fmt.Sprintf("%d withdrawals", len(withdrawals)), common.WideWidth)
}

func printBalance(ctx context.Context, services *common.Services, w *models.Withdrawal) {
	balance, err := services.Api.GetUserBalance(ctx, w.UserId, w.Currency)
	if err != nil {
		zap.L().Warn("Failed to read balance", zap.Error(err))
		return
	}
	fmt.Printf("Available:   %s %s\n", balance.Available, balance.Currency)
	fmt.Printf("Frozen:      %s %s\n\n", balance.Frozen, balance.Currency)
}

// describe turns the expected ledger rejections into operator-facing text
func describe(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return "insufficient available balance or amount below the minimum withdrawal"
	case errors.Is(err, store.ErrInvalidState):
		return "withdrawal is not in a state that allows this action"
	case errors.Is(err, store.ErrNotFound):
		return "withdrawal not found"
	case errors.Is(err, store.ErrInvalidCurrency):
		return "unknown currency"
	case errors.Is(err, store.ErrInvalidAmount):
		return "invalid amount"
	}
	return err.Error()
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	switch f.action {
	case "list":
		withdrawals, err := services.Api.ListWithdrawals(ctx, f.status, f.limit)
		if err != nil {
			zap.L().Fatal("Failed to list withdrawals", zap.Error(err))
		}
		printQueue(withdrawals, f.status)
		return
	case "show":
		if err := requireFlags("id", f.id); err != nil {
			zap.L().Fatal("Invalid flags", zap.Error(err))
		}
		w, err := services.Api.GetWithdrawal(ctx, f.id)
		if err != nil {
			fmt.Printf("Error: %s\n", describe(err))
			zap.L().Fatal("Failed to get withdrawal", zap.String("withdrawal_id", f.id), zap.Error(err))
		}
		printWithdrawal("WITHDRAWAL", w)
		printBalance(ctx, services, w)
		return
	case "reserve":
		w, err := reserve(ctx, services, f)
		if err != nil {
			common.PrintHeader("WITHDRAWAL REJECTED", common.DefaultWidth)
			fmt.Printf("Error: %s\n", describe(err))
			common.PrintSeparator("=", common.DefaultWidth)
			zap.L().Fatal("Failed to reserve withdrawal", zap.Error(err))
		}
		printWithdrawal("WITHDRAWAL RESERVED", w)
		printBalance(ctx, services, w)
	default:
		w, err := transition(ctx, services, f)
		if err != nil {
			common.PrintHeader("WITHDRAWAL UPDATE FAILED", common.DefaultWidth)
			fmt.Printf("Error: %s\n", describe(err))
			common.PrintSeparator("=", common.DefaultWidth)
			zap.L().Fatal("Failed to update withdrawal", zap.String("action", f.action), zap.Error(err))
		}
		printWithdrawal("WITHDRAWAL "+string(w.Status), w)
	}
}
