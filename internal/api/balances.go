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

package api

import (
	"context"
	"fmt"

	"wallet-ledger-go/internal/models"

	"go.uber.org/zap"
)

// GetUserBalance returns the current balance for a user and specific currency
func (s *LedgerService) GetUserBalance(ctx context.Context, userId, currency string) (models.UserBalance, error) {
	if userId == "" || currency == "" {
		return models.UserBalance{}, fmt.Errorf("user_id and currency are required")
	}

	balance, err := s.store.GetBalance(ctx, userId, currency)
	if err != nil {
		zap.L().Error("Failed to get user balance",
			zap.String("user_id", userId),
			zap.String("currency", currency),
			zap.Error(err))
		return models.UserBalance{}, fmt.Errorf("failed to retrieve balance")
	}

	return toUserBalance(balance), nil
}

// GetUserBalances returns all non-zero balances for a user
func (s *LedgerService) GetUserBalances(ctx context.Context, userId string) ([]models.UserBalance, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	balances, err := s.store.GetAllBalances(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances")
	}

	result := make([]models.UserBalance, len(balances))
	for i, balance := range balances {
		result[i] = toUserBalance(balance)
	}

	return result, nil
}

// GetTransactionHistory returns paginated transaction history for a user and currency
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId, currency string, limit, offset int) ([]models.TransactionRecord, error) {
	if userId == "" || currency == "" {
		return nil, fmt.Errorf("user_id and currency are required")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.store.GetTransactionHistory(ctx, userId, currency, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.String("currency", currency),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history")
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = models.TransactionRecord{
			Id:             tx.Id,
			Type:           string(tx.Type),
			Status:         string(tx.Status),
			FromCurrency:   tx.FromCurrency,
			ToCurrency:     tx.ToCurrency,
			Amount:         tx.Amount,
			ReceivedAmount: tx.ReceivedAmount,
			Fee:            tx.Fee,
			Reference:      tx.ExternalReference,
			CreatedAt:      tx.CreatedAt,
		}
	}

	return result, nil
}

// ReconcileUser checks every currency a user holds against the journal and
// returns the currencies that disagree.
func (s *LedgerService) ReconcileUser(ctx context.Context, userId string) ([]string, error) {
	balances, err := s.store.GetAllBalances(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve balances: %w", err)
	}

	var mismatched []string
	for _, balance := range balances {
		if err := s.store.ReconcileBalance(ctx, userId, balance.Currency); err != nil {
			mismatched = append(mismatched, balance.Currency)
		}
	}
	return mismatched, nil
}

func toUserBalance(balance models.AccountBalance) models.UserBalance {
	return models.UserBalance{
		Currency:  balance.Currency,
		Available: balance.Available,
		Frozen:    balance.Frozen,
		Total:     balance.Total(),
	}
}
