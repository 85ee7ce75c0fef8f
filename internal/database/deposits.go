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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateDeposit stores a deposit record opened at the payment processor
func (s *Service) CreateDeposit(ctx context.Context, d *models.Deposit) error {
	if d.PaymentId == "" || d.OrderId == "" {
		return fmt.Errorf("%w: deposit requires order and payment ids", store.ErrInvalidRequest)
	}
	if d.Id == "" {
		d.Id = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = models.DepositStatusWaiting
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	var completedAt any
	if d.CompletedAt != nil {
		completedAt = *d.CompletedAt
	}

	_, err := s.db.ExecContext(ctx, queryInsertDeposit,
		d.Id, d.UserId, d.OrderId, d.PaymentId, d.Currency, d.Amount.String(), d.PayCurrency,
		d.PayAmount.String(), d.PayAddress, d.ActuallyPaid.String(), string(d.Status), completedAt,
		d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: deposit for order %s or payment %s", ErrDuplicateTransaction, d.OrderId, d.PaymentId)
		}
		return fmt.Errorf("failed to insert deposit: %w", err)
	}

	zap.L().Info("Deposit record created",
		zap.String("user_id", d.UserId),
		zap.String("order_id", d.OrderId),
		zap.String("payment_id", d.PaymentId),
		zap.String("currency", d.Currency),
		zap.String("amount", d.Amount.String()))
	return nil
}

// GetDepositByPaymentId looks up a deposit by the processor's payment id
func (s *Service) GetDepositByPaymentId(ctx context.Context, paymentId string) (*models.Deposit, error) {
	return getDepositByPaymentId(ctx, s.db, paymentId)
}

func getDepositByPaymentId(ctx context.Context, q querier, paymentId string) (*models.Deposit, error) {
	d, err := scanDeposit(q.QueryRowContext(ctx, queryGetDepositByPaymentId, paymentId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownPayment, paymentId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return d, nil
}

func updateDepositStatus(ctx context.Context, q querier, paymentId string, status models.DepositStatus, actuallyPaid decimal.Decimal) error {
	result, err := q.ExecContext(ctx, queryUpdateDepositStatus, string(status), actuallyPaid.String(), time.Now().UTC(), paymentId)
	if err != nil {
		return fmt.Errorf("failed to update deposit status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrUnknownPayment, paymentId)
	}
	return nil
}

func markDepositCompleted(ctx context.Context, q querier, paymentId string, at time.Time) error {
	result, err := q.ExecContext(ctx, queryMarkDepositCompleted, at, time.Now().UTC(), paymentId)
	if err != nil {
		return fmt.Errorf("failed to mark deposit completed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: deposit %s already completed", store.ErrAlreadyProcessed, paymentId)
	}
	return nil
}

// ListOpenDeposits returns deposits created since the cutoff that are neither
// credited nor in a terminal failure state, oldest first.
func (s *Service) ListOpenDeposits(ctx context.Context, since time.Time, limit int) ([]models.Deposit, error) {
	rows, err := s.db.QueryContext(ctx, queryListOpenDeposits, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open deposits: %w", err)
	}
	defer closeRows(rows)

	var deposits []models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposit rows: %w", err)
	}
	return deposits, nil
}
