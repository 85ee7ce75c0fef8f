package database

import (
	"database/sql"
	"fmt"

	"wallet-ledger-go/internal/models"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s '%s': %w", field, value, err)
	}
	return d, nil
}

func scanBalance(row rowScanner) (models.AccountBalance, error) {
	var b models.AccountBalance
	var available, frozen, deposited, withdrawn string
	err := row.Scan(&b.Id, &b.UserId, &b.Currency, &available, &frozen, &deposited, &withdrawn,
		&b.LastTransactionId, &b.Version, &b.UpdatedAt)
	if err != nil {
		return b, err
	}

	if b.Available, err = parseDecimal("available", available); err != nil {
		return b, err
	}
	if b.Frozen, err = parseDecimal("frozen", frozen); err != nil {
		return b, err
	}
	if b.LifetimeDeposited, err = parseDecimal("lifetime_deposited", deposited); err != nil {
		return b, err
	}
	if b.LifetimeWithdrawn, err = parseDecimal("lifetime_withdrawn", withdrawn); err != nil {
		return b, err
	}
	return b, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var txType, status, amount, received, fee, metadata string
	err := row.Scan(&t.Id, &t.UserId, &txType, &status, &t.FromCurrency, &t.ToCurrency,
		&amount, &received, &fee, &t.ExternalReference, &metadata, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(txType)
	t.Status = models.TransactionStatus(status)

	if t.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if t.ReceivedAmount, err = parseDecimal("received_amount", received); err != nil {
		return nil, err
	}
	if t.Fee, err = parseDecimal("fee", fee); err != nil {
		return nil, err
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata for transaction %s: %w", t.Id, err)
		}
	}
	return t, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

func scanWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	w := &models.Withdrawal{}
	var amount, fee, status, priority string
	err := row.Scan(&w.Id, &w.UserId, &w.Currency, &amount, &fee, &w.ToAddress, &status, &priority,
		&w.TransactionId, &w.ProcessedBy, &w.TxHash, &w.FailureReason, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = models.WithdrawalStatus(status)
	w.Priority = models.WithdrawalPriority(priority)

	if w.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if w.Fee, err = parseDecimal("fee", fee); err != nil {
		return nil, err
	}
	return w, nil
}

func scanDeposit(row rowScanner) (*models.Deposit, error) {
	d := &models.Deposit{}
	var amount, payAmount, actuallyPaid, status string
	var completedAt sql.NullTime
	err := row.Scan(&d.Id, &d.UserId, &d.OrderId, &d.PaymentId, &d.Currency, &amount, &d.PayCurrency,
		&payAmount, &d.PayAddress, &actuallyPaid, &status, &completedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = models.DepositStatus(status)
	if completedAt.Valid {
		at := completedAt.Time
		d.CompletedAt = &at
	}

	if d.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if d.PayAmount, err = parseDecimal("pay_amount", payAmount); err != nil {
		return nil, err
	}
	if d.ActuallyPaid, err = parseDecimal("actually_paid", actuallyPaid); err != nil {
		return nil, err
	}
	return d, nil
}
