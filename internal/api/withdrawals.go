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

// ListWithdrawals returns the withdrawal queue for one status, or every
// withdrawal when status is empty.
func (s *LedgerService) ListWithdrawals(ctx context.Context, status string, limit int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	ws := models.WithdrawalStatus(status)
	switch ws {
	case "", models.WithdrawalStatusPending, models.WithdrawalStatusProcessing,
		models.WithdrawalStatusCompleted, models.WithdrawalStatusFailed, models.WithdrawalStatusCancelled:
	default:
		return nil, fmt.Errorf("unknown withdrawal status %q", status)
	}

	withdrawals, err := s.store.ListWithdrawals(ctx, ws, limit)
	if err != nil {
		zap.L().Error("Failed to list withdrawals", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve withdrawals")
	}
	return withdrawals, nil
}

// GetWithdrawal returns a single withdrawal request
func (s *LedgerService) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	if id == "" {
		return nil, fmt.Errorf("withdrawal id is required")
	}
	return s.store.GetWithdrawal(ctx, id)
}
