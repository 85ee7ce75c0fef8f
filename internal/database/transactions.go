package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

// insertTransaction records t and its journal postings
func (s *SubledgerService) insertTransaction(ctx context.Context, q querier, t *models.Transaction) error {
	if t.Id == "" {
		t.Id = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	metadata, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}

	zap.L().Debug("Recording transaction",
		zap.String("transaction_id", t.Id),
		zap.String("user_id", t.UserId),
		zap.String("type", string(t.Type)),
		zap.String("status", string(t.Status)),
		zap.String("amount", t.Amount.String()),
		zap.String("external_reference", t.ExternalReference))

	_, err = q.ExecContext(ctx, queryInsertTransaction,
		t.Id, t.UserId, string(t.Type), string(t.Status), t.FromCurrency, t.ToCurrency,
		t.Amount.String(), t.ReceivedAmount.String(), t.Fee.String(), t.ExternalReference, metadata,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s already recorded", ErrDuplicateTransaction, t.Type, t.ExternalReference)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := s.addJournalEntries(ctx, q, t, t.CreatedAt); err != nil {
		return fmt.Errorf("failed to add journal entries: %w", err)
	}
	return nil
}

// updateTransactionStatus moves a pending transaction to its final status.
// Status is the only field that ever changes, and only once.
func (s *SubledgerService) updateTransactionStatus(ctx context.Context, q querier, id string, status models.TransactionStatus) error {
	t, err := s.getTransaction(ctx, q, id)
	if err != nil {
		return err
	}
	if t.Status != models.TransactionStatusPending {
		return fmt.Errorf("%w: transaction %s is already %s", store.ErrInvalidState, id, t.Status)
	}

	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, queryUpdateTransactionStatus, string(status), now, id, string(models.TransactionStatusPending))
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction status update failed - %w", ErrConcurrentModification)
	}

	t.Status = status
	t.UpdatedAt = now
	if err := s.addJournalEntries(ctx, q, t, now); err != nil {
		return fmt.Errorf("failed to add journal entries: %w", err)
	}
	return nil
}

func (s *SubledgerService) getTransaction(ctx context.Context, q querier, id string) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, queryGetTransaction, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (s *SubledgerService) findTransaction(ctx context.Context, q querier, txType models.TransactionType, reference string) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, queryFindTransactionByReference, string(txType), reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s transaction for %s", ErrNotFound, txType, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return t, nil
}

// GetTransaction returns a single transaction by id
func (s *SubledgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.getTransaction(ctx, s.db, id)
}

// GetTransactionHistory returns paginated transaction history for a user,
// newest first. A swap shows up under both of its currencies.
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, userId, currency string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.String("currency", currency),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, currency, currency, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
