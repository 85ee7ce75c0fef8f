package api

import (
	"context"
	"fmt"

	"wallet-ledger-go/internal/models"
)

// GetDeposit returns a deposit by the processor's payment id
func (s *LedgerService) GetDeposit(ctx context.Context, paymentId string) (*models.Deposit, error) {
	if paymentId == "" {
		return nil, fmt.Errorf("payment_id is required")
	}
	return s.store.GetDepositByPaymentId(ctx, paymentId)
}
