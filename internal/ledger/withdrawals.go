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

package ledger

import (
	"context"
	"fmt"

	"wallet-ledger-go/internal/balance"
	"wallet-ledger-go/internal/metrics"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalRequest struct {
	UserId    string
	Currency  string
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	ToAddress string
	Priority  models.WithdrawalPriority
}

// QuoteWithdrawalFee returns the configured network fee for a currency
func (s *Service) QuoteWithdrawalFee(symbol string) (decimal.Decimal, error) {
	cur, err := s.currencies.Get(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return cur.WithdrawalFee, nil
}

// ReserveWithdrawal freezes amount+fee and opens a pending withdrawal with
// its pending transaction.
func (s *Service) ReserveWithdrawal(ctx context.Context, req WithdrawalRequest) (*models.Withdrawal, error) {
	if req.UserId == "" || req.ToAddress == "" {
		return nil, fmt.Errorf("%w: withdrawal requires user and destination address", store.ErrInvalidRequest)
	}
	cur, err := s.currencies.Get(req.Currency)
	if err != nil {
		return nil, err
	}
	if err := cur.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Fee.IsNegative() || !cur.Truncate(req.Fee).Equal(req.Fee) {
		return nil, fmt.Errorf("%w: invalid %s withdrawal fee %s", store.ErrInvalidAmount, cur.Symbol, req.Fee)
	}
	if req.Amount.LessThan(cur.MinWithdrawal) {
		return nil, fmt.Errorf("%w: %s minimum withdrawal is %s, requested %s",
			store.ErrInsufficientFunds, cur.Symbol, cur.MinWithdrawal, req.Amount)
	}
	priority := req.Priority
	if priority == "" {
		priority = models.WithdrawalPriorityNormal
	}
	if _, ok := models.ParseWithdrawalPriority(string(priority)); !ok {
		return nil, fmt.Errorf("%w: unknown priority %q", store.ErrInvalidRequest, priority)
	}

	total := req.Amount.Add(req.Fee)
	var withdrawal *models.Withdrawal

	err = s.execute(ctx, "reserve_withdrawal", []string{req.UserId}, func(ctx context.Context, tx store.Tx) error {
		sheet, err := tx.Sheet(ctx, req.UserId)
		if err != nil {
			return err
		}
		if err := sheet.Freeze(cur.Symbol, total); err != nil {
			return err
		}

		withdrawalId := uuid.New().String()
		t := &models.Transaction{
			UserId:            req.UserId,
			Type:              models.TransactionTypeWithdrawal,
			Status:            models.TransactionStatusPending,
			FromCurrency:      cur.Symbol,
			Amount:            req.Amount,
			Fee:               req.Fee,
			ExternalReference: withdrawalId,
			Metadata:          map[string]string{"to_address": req.ToAddress},
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}

		withdrawal = &models.Withdrawal{
			Id:            withdrawalId,
			UserId:        req.UserId,
			Currency:      cur.Symbol,
			Amount:        req.Amount,
			Fee:           req.Fee,
			ToAddress:     req.ToAddress,
			Status:        models.WithdrawalStatusPending,
			Priority:      priority,
			TransactionId: t.Id,
			CreatedAt:     t.CreatedAt,
		}
		return tx.InsertWithdrawal(ctx, withdrawal)
	})
	if err != nil {
		logOutcome("reserve_withdrawal", err,
			zap.String("user_id", req.UserId),
			zap.String("currency", cur.Symbol),
			zap.String("amount", req.Amount.String()))
		return nil, err
	}

	zap.L().Info("Withdrawal reserved",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("user_id", req.UserId),
		zap.String("currency", cur.Symbol),
		zap.String("amount", req.Amount.String()),
		zap.String("fee", req.Fee.String()))
	return withdrawal, nil
}

// ClaimWithdrawal moves a pending withdrawal to processing. Balances are untouched.
func (s *Service) ClaimWithdrawal(ctx context.Context, withdrawalId, operatorId string) (*models.Withdrawal, error) {
	if operatorId == "" {
		return nil, fmt.Errorf("%w: operator id is required", store.ErrInvalidRequest)
	}
	return s.transition(ctx, "claim_withdrawal", withdrawalId, models.WithdrawalStatusProcessing,
		func(w *models.Withdrawal, _ *balance.Sheet) error {
			w.ProcessedBy = operatorId
			return nil
		})
}

// CompleteWithdrawal records the on-chain hash and burns the frozen reservation
func (s *Service) CompleteWithdrawal(ctx context.Context, withdrawalId, operatorId, txHash string) (*models.Withdrawal, error) {
	if operatorId == "" || txHash == "" {
		return nil, fmt.Errorf("%w: operator id and transaction hash are required", store.ErrInvalidRequest)
	}
	return s.transition(ctx, "complete_withdrawal", withdrawalId, models.WithdrawalStatusCompleted,
		func(w *models.Withdrawal, sheet *balance.Sheet) error {
			w.ProcessedBy = operatorId
			w.TxHash = txHash
			return sheet.BurnFrozen(w.Currency, w.Total())
		})
}

// FailWithdrawal rejects a withdrawal and returns the reservation to available
func (s *Service) FailWithdrawal(ctx context.Context, withdrawalId, operatorId, reason string) (*models.Withdrawal, error) {
	if operatorId == "" || reason == "" {
		return nil, fmt.Errorf("%w: operator id and failure reason are required", store.ErrInvalidRequest)
	}
	return s.transition(ctx, "fail_withdrawal", withdrawalId, models.WithdrawalStatusFailed,
		func(w *models.Withdrawal, sheet *balance.Sheet) error {
			w.ProcessedBy = operatorId
			w.FailureReason = reason
			return sheet.Unfreeze(w.Currency, w.Total())
		})
}

// CancelWithdrawal lets the owner withdraw a request nobody has picked up yet.
// Someone else's withdrawal reads as not found.
func (s *Service) CancelWithdrawal(ctx context.Context, withdrawalId, userId string) (*models.Withdrawal, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidRequest)
	}
	return s.transitionAs(ctx, "cancel_withdrawal", withdrawalId, userId, models.WithdrawalStatusCancelled,
		func(w *models.Withdrawal, sheet *balance.Sheet) error {
			return sheet.Unfreeze(w.Currency, w.Total())
		})
}

func (s *Service) transition(ctx context.Context, operation, withdrawalId string, to models.WithdrawalStatus,
	apply func(w *models.Withdrawal, sheet *balance.Sheet) error) (*models.Withdrawal, error) {
	return s.transitionAs(ctx, operation, withdrawalId, "", to, apply)
}

// transitionAs applies one state machine edge. The stored status is re-read
// under the owner's lock; anything but a legal edge is ErrInvalidState and
// changes nothing. A non-empty ownerId restricts the edge to that user.
func (s *Service) transitionAs(ctx context.Context, operation, withdrawalId, ownerId string, to models.WithdrawalStatus,
	apply func(w *models.Withdrawal, sheet *balance.Sheet) error) (*models.Withdrawal, error) {

	// owner lookup only picks the lock; the status is checked again inside
	current, err := s.store.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}
	if ownerId != "" && current.UserId != ownerId {
		return nil, fmt.Errorf("%w: withdrawal %s", store.ErrNotFound, withdrawalId)
	}

	var updated *models.Withdrawal
	var from models.WithdrawalStatus
	err = s.execute(ctx, operation, []string{current.UserId}, func(ctx context.Context, tx store.Tx) error {
		w, err := tx.GetWithdrawal(ctx, withdrawalId)
		if err != nil {
			return err
		}
		from = w.Status
		if !w.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: withdrawal %s cannot go from %s to %s", store.ErrInvalidState, w.Id, w.Status, to)
		}

		sheet, err := tx.Sheet(ctx, w.UserId)
		if err != nil {
			return err
		}
		if err := apply(w, sheet); err != nil {
			return err
		}

		w.Status = to
		if err := tx.UpdateWithdrawal(ctx, w, from); err != nil {
			return err
		}
		if to.IsTerminal() {
			if err := tx.UpdateTransactionStatus(ctx, w.TransactionId, to.TransactionStatus()); err != nil {
				return err
			}
		}
		updated = w
		return nil
	})
	if err != nil {
		logOutcome(operation, err,
			zap.String("withdrawal_id", withdrawalId),
			zap.String("target_status", string(to)))
		return nil, err
	}

	metrics.WithdrawalTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	zap.L().Info("Withdrawal transitioned",
		zap.String("withdrawal_id", updated.Id),
		zap.String("user_id", updated.UserId),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("processed_by", updated.ProcessedBy))
	return updated, nil
}
