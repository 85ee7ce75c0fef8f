package ledger

import (
	"context"
	"fmt"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdjustmentRequest struct {
	UserId     string
	Currency   string
	Amount     decimal.Decimal
	Direction  models.AdjustmentDirection
	Reason     string
	OperatorId string
}

// AdjustBalance credits or debits available directly, bypassing freeze.
// A debit beyond available is rejected unless clamping is enabled, in which
// case only what is available is taken and the clamp is recorded.
func (s *Service) AdjustBalance(ctx context.Context, req AdjustmentRequest) (*models.Transaction, error) {
	if req.UserId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidRequest)
	}
	if req.Reason == "" || req.OperatorId == "" {
		return nil, fmt.Errorf("%w: reason and operator are mandatory", store.ErrInvalidAdjustment)
	}
	if req.Direction != models.AdjustmentCredit && req.Direction != models.AdjustmentDebit {
		return nil, fmt.Errorf("%w: unknown direction %q", store.ErrInvalidAdjustment, req.Direction)
	}
	cur, err := s.currencies.Get(req.Currency)
	if err != nil {
		return nil, err
	}
	if err := cur.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	var record *models.Transaction
	err = s.execute(ctx, "adjust_balance", []string{req.UserId}, func(ctx context.Context, tx store.Tx) error {
		sheet, err := tx.Sheet(ctx, req.UserId)
		if err != nil {
			return err
		}

		applied := req.Amount
		clamped := false
		record = &models.Transaction{
			UserId: req.UserId,
			Type:   models.TransactionTypeAdminAdjustment,
			Status: models.TransactionStatusCompleted,
		}

		if req.Direction == models.AdjustmentCredit {
			if err := sheet.Credit(cur.Symbol, applied); err != nil {
				return err
			}
			record.ToCurrency = cur.Symbol
		} else {
			available := sheet.Available(cur.Symbol)
			if available.LessThan(applied) && s.cfg.AllowAdjustmentClamp {
				applied = available
				clamped = true
			}
			// clamping an empty balance still leaves an audit record
			if applied.IsPositive() {
				if err := sheet.Debit(cur.Symbol, applied); err != nil {
					return err
				}
			}
			record.FromCurrency = cur.Symbol
		}

		record.Amount = applied
		record.Metadata = map[string]string{
			"direction":        string(req.Direction),
			"reason":           req.Reason,
			"operator_id":      req.OperatorId,
			"requested_amount": req.Amount.String(),
			"clamped":          fmt.Sprintf("%t", clamped),
		}
		return tx.InsertTransaction(ctx, record)
	})
	if err != nil {
		logOutcome("adjust_balance", err,
			zap.String("user_id", req.UserId),
			zap.String("currency", cur.Symbol),
			zap.String("direction", string(req.Direction)),
			zap.String("operator_id", req.OperatorId))
		return nil, err
	}

	zap.L().Info("Balance adjusted",
		zap.String("user_id", req.UserId),
		zap.String("transaction_id", record.Id),
		zap.String("currency", cur.Symbol),
		zap.String("direction", string(req.Direction)),
		zap.String("amount", record.Amount.String()),
		zap.String("requested_amount", req.Amount.String()),
		zap.String("operator_id", req.OperatorId),
		zap.String("reason", req.Reason))
	return record, nil
}
