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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"go.uber.org/zap"
)

func insertWithdrawal(ctx context.Context, q querier, w *models.Withdrawal) error {
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = w.CreatedAt

	_, err := q.ExecContext(ctx, queryInsertWithdrawal,
		w.Id, w.UserId, w.Currency, w.Amount.String(), w.Fee.String(), w.ToAddress,
		string(w.Status), string(w.Priority), w.TransactionId,
		w.ProcessedBy, w.TxHash, w.FailureReason, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", err)
	}
	return nil
}

func getWithdrawal(ctx context.Context, q querier, id string) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(q.QueryRowContext(ctx, queryGetWithdrawal, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: withdrawal %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// updateWithdrawal writes the mutable workflow fields guarded by the status
// the caller read. A lost race surfaces as ErrInvalidState.
func updateWithdrawal(ctx context.Context, q querier, w *models.Withdrawal, from models.WithdrawalStatus) error {
	w.UpdatedAt = time.Now().UTC()

	result, err := q.ExecContext(ctx, queryUpdateWithdrawal,
		string(w.Status), w.ProcessedBy, w.TxHash, w.FailureReason, w.UpdatedAt,
		w.Id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: withdrawal %s is no longer %s", store.ErrInvalidState, w.Id, from)
	}
	return nil
}

// GetWithdrawal returns a withdrawal request by id
func (s *Service) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	return getWithdrawal(ctx, s.db, id)
}

// ListWithdrawals returns withdrawals in one status, highest priority and
// oldest first. An empty status lists everything, newest first.
func (s *Service) ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx, queryListWithdrawals, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, queryListWithdrawalsByStatus, string(status), limit)
	}
	if err != nil {
		zap.L().Error("Failed to list withdrawals", zap.String("status", string(status)), zap.Error(err))
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer closeRows(rows)

	var withdrawals []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}
	return withdrawals, nil
}
