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
	"flag"
	"fmt"
	"os"

	"wallet-ledger-go/internal/api"
	"wallet-ledger-go/internal/common"
	"wallet-ledger-go/internal/config"
	"wallet-ledger-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	totalBalances     int
	usersWithBalances int
	mismatches        int
}

func printBalance(balance models.AccountBalance, isLast bool) {
	fmt.Printf("%s %-6s available %20s  frozen %20s  (v%d, last_tx: %s, updated: %s)\n",
		common.BoxPrefix(isLast),
		balance.Currency,
		balance.Available.String(),
		balance.Frozen.String(),
		balance.Version,
		common.ShortId(balance.LastTransactionId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printUserHeader(userId string, balanceCount int) {
	fmt.Printf("\n┌─ User: %s\n", userId)
	fmt.Printf("│  Currencies: %d\n", balanceCount)
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, userId string, ledgerStore storeReader, apiService *api.LedgerService, reconcile bool) (int, []string, error) {
	balances, err := ledgerStore.GetAllBalances(ctx, userId)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get balances: %w", err)
	}

	if len(balances) == 0 {
		return 0, nil, nil
	}

	printUserHeader(userId, len(balances))
	for i, balance := range balances {
		printBalance(balance, i == len(balances)-1)
	}

	if !reconcile {
		return len(balances), nil, nil
	}
	mismatched, err := apiService.ReconcileUser(ctx, userId)
	if err != nil {
		return len(balances), nil, err
	}
	if len(mismatched) > 0 {
		fmt.Printf("   ⚠ journal mismatch: %v\n", mismatched)
	}
	return len(balances), mismatched, nil
}

// printHistory lists the latest transactions in every currency the user holds
func printHistory(ctx context.Context, apiService *api.LedgerService, userId string, limit int) error {
	balances, err := apiService.GetUserBalances(ctx, userId)
	if err != nil {
		return err
	}
	for _, balance := range balances {
		records, err := apiService.GetTransactionHistory(ctx, userId, balance.Currency, limit, 0)
		if err != nil {
			return err
		}
		fmt.Printf("\n   %s history (total %s)\n", balance.Currency, balance.Total)
		for i, r := range records {
			amount := r.Amount.String()
			if r.Type == "swap" && r.ToCurrency == balance.Currency {
				amount = "+" + r.ReceivedAmount.String()
			}
			fmt.Printf("   %s %-17s %-10s %20s  fee %s  %s\n",
				common.BoxPrefix(i == len(records)-1),
				r.Type,
				r.Status,
				amount,
				r.Fee.String(),
				r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

type storeReader interface {
	GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)
}

func processUsersAndGenerateReport(ctx context.Context, users []string, ledgerStore storeReader, apiService *api.LedgerService, reconcile bool, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, userId := range users {
		stats.totalUsers++

		balanceCount, mismatched, err := processUser(ctx, userId, ledgerStore, apiService, reconcile)
		if err != nil {
			logger.Error("Failed to process user", zap.String("user_id", userId), zap.Error(err))
			continue
		}

		if balanceCount > 0 {
			stats.usersWithBalances++
			stats.totalBalances += balanceCount
		}
		stats.mismatches += len(mismatched)
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	userFlag := flag.String("user", "", "Filter by specific user id (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Verify every balance against the journal")
	historyFlag := flag.Int("history", 0, "Show the latest N transactions per currency (requires -user)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only, so the ledger engine and settlement client are not needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.ResolveAccountHolders(ctx, dbService, *userFlag, logger)
	if err != nil {
		logger.Fatal("Failed to resolve account holders", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.WideWidth)

	apiService := api.NewLedgerService(dbService)
	stats := processUsersAndGenerateReport(ctx, users, dbService, apiService, *reconcileFlag, logger)

	if *historyFlag > 0 {
		if *userFlag == "" {
			logger.Warn("-history needs -user, skipping transaction history")
		} else if err := printHistory(ctx, apiService, *userFlag, *historyFlag); err != nil {
			logger.Error("Failed to load transaction history", zap.String("user_id", *userFlag), zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users with balances (%d total balances across %d users queried)",
		stats.usersWithBalances, stats.totalBalances, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d journal mismatches", stats.mismatches)
	}
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("total_balances", stats.totalBalances),
		zap.Int("mismatches", stats.mismatches))

	if stats.mismatches > 0 {
		loggerCleanup()
		os.Exit(1)
	}
}
