package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wallet-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns current balance for user/currency (O(1) lookup)
func (s *SubledgerService) GetBalance(ctx context.Context, userId, currency string) (models.AccountBalance, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId), zap.String("currency", currency))

	balance, err := scanBalance(s.db.QueryRowContext(ctx, queryGetBalance, userId, currency))
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return models.AccountBalance{
			UserId:            userId,
			Currency:          currency,
			Available:         decimal.Zero,
			Frozen:            decimal.Zero,
			LifetimeDeposited: decimal.Zero,
			LifetimeWithdrawn: decimal.Zero,
		}, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.String("currency", currency), zap.Error(err))
		return models.AccountBalance{}, fmt.Errorf("failed to get balance: %w", err)
	}

	zap.L().Debug("Retrieved balance",
		zap.String("user_id", userId),
		zap.String("currency", currency),
		zap.String("available", balance.Available.String()),
		zap.String("frozen", balance.Frozen.String()))
	return balance, nil
}

// GetAllBalances returns all non-zero balances for a user
func (s *SubledgerService) GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error) {
	zap.L().Debug("Getting all balances", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetAllUserBalances, userId)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer closeRows(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		// zeroed rows stay in the table but are not reported
		if balance.Total().IsZero() {
			continue
		}
		balances = append(balances, balance)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved all balances", zap.String("user_id", userId), zap.Int("count", len(balances)))
	return balances, nil
}

// ListBalanceHolders returns every user that has ever held a balance
func (s *SubledgerService) ListBalanceHolders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryListBalanceHolders)
	if err != nil {
		return nil, fmt.Errorf("failed to list balance holders: %w", err)
	}
	defer closeRows(rows)

	var users []string
	for rows.Next() {
		var userId string
		if err := rows.Scan(&userId); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, userId)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance holders: %w", err)
	}
	return users, nil
}

// ReconcileBalance verifies that the stored available and frozen amounts match
// the user's journal postings. Sums run in Go because amounts are stored as
// text and SQLite arithmetic would go through floating point.
func (s *SubledgerService) ReconcileBalance(ctx context.Context, userId, currency string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId), zap.String("currency", currency))

	current, err := s.GetBalance(ctx, userId, currency)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryReconcileJournal, userId, currency)
	if err != nil {
		return fmt.Errorf("failed to load journal entries: %w", err)
	}
	defer closeRows(rows)

	calculatedAvailable := decimal.Zero
	calculatedFrozen := decimal.Zero
	for rows.Next() {
		var accountType, debitStr, creditStr string
		if err := rows.Scan(&accountType, &debitStr, &creditStr); err != nil {
			return fmt.Errorf("failed to scan journal entry: %w", err)
		}
		debitAmount, err := parseDecimal("debit_amount", debitStr)
		if err != nil {
			return err
		}
		creditAmount, err := parseDecimal("credit_amount", creditStr)
		if err != nil {
			return err
		}

		net := creditAmount.Sub(debitAmount)
		switch accountType {
		case accountUserAvailable:
			calculatedAvailable = calculatedAvailable.Add(net)
		case accountUserFrozen:
			calculatedFrozen = calculatedFrozen.Add(net)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating journal rows: %w", err)
	}

	// Check if balances match (exact decimal comparison)
	if !current.Available.Equal(calculatedAvailable) || !current.Frozen.Equal(calculatedFrozen) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("currency", currency),
			zap.String("current_available", current.Available.String()),
			zap.String("calculated_available", calculatedAvailable.String()),
			zap.String("current_frozen", current.Frozen.String()),
			zap.String("calculated_frozen", calculatedFrozen.String()))
		return fmt.Errorf("balance mismatch: available current=%s calculated=%s, frozen current=%s calculated=%s",
			current.Available, calculatedAvailable, current.Frozen, calculatedFrozen)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("currency", currency),
		zap.String("available", current.Available.String()),
		zap.String("frozen", current.Frozen.String()))
	return nil
}
