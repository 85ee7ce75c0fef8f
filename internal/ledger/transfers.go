package ledger

import (
	"context"
	"fmt"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransferRequest struct {
	FromUserId string
	ToUserId   string
	Currency   string
	Amount     decimal.Decimal
	Reference  string
}

type TransferResult struct {
	Reference string
	Out       *models.Transaction
	In        *models.Transaction
}

// Transfer moves available funds between two users. Both users are locked in
// key order, and both records share one reference.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.FromUserId == "" || req.ToUserId == "" {
		return nil, fmt.Errorf("%w: transfer requires both users", store.ErrInvalidRequest)
	}
	if req.FromUserId == req.ToUserId {
		return nil, fmt.Errorf("%w: cannot transfer to the same user", store.ErrInvalidRequest)
	}
	cur, err := s.currencies.Get(req.Currency)
	if err != nil {
		return nil, err
	}
	if err := cur.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	reference := req.Reference
	if reference == "" {
		reference = uuid.New().String()
	}

	result := &TransferResult{Reference: reference}
	err = s.execute(ctx, "transfer", []string{req.FromUserId, req.ToUserId}, func(ctx context.Context, tx store.Tx) error {
		sender, err := tx.Sheet(ctx, req.FromUserId)
		if err != nil {
			return err
		}
		receiver, err := tx.Sheet(ctx, req.ToUserId)
		if err != nil {
			return err
		}
		if err := sender.Debit(cur.Symbol, req.Amount); err != nil {
			return err
		}
		if err := receiver.Credit(cur.Symbol, req.Amount); err != nil {
			return err
		}

		result.Out = &models.Transaction{
			UserId:            req.FromUserId,
			Type:              models.TransactionTypeTransferOut,
			Status:            models.TransactionStatusCompleted,
			FromCurrency:      cur.Symbol,
			Amount:            req.Amount,
			ExternalReference: reference,
			Metadata:          map[string]string{"counterparty": req.ToUserId},
		}
		if err := tx.InsertTransaction(ctx, result.Out); err != nil {
			return err
		}
		result.In = &models.Transaction{
			UserId:            req.ToUserId,
			Type:              models.TransactionTypeTransferIn,
			Status:            models.TransactionStatusCompleted,
			ToCurrency:        cur.Symbol,
			Amount:            req.Amount,
			ReceivedAmount:    req.Amount,
			ExternalReference: reference,
			Metadata:          map[string]string{"counterparty": req.FromUserId},
		}
		return tx.InsertTransaction(ctx, result.In)
	})
	if err != nil {
		logOutcome("transfer", err,
			zap.String("from_user_id", req.FromUserId),
			zap.String("to_user_id", req.ToUserId),
			zap.String("currency", cur.Symbol),
			zap.String("amount", req.Amount.String()))
		return nil, err
	}

	zap.L().Info("Transfer completed",
		zap.String("reference", reference),
		zap.String("from_user_id", req.FromUserId),
		zap.String("to_user_id", req.ToUserId),
		zap.String("currency", cur.Symbol),
		zap.String("amount", req.Amount.String()))
	return result, nil
}
