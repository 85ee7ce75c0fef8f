package database

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Journal account types. User accounts are liabilities: a credit raises what
// the platform owes the user.
const (
	accountUserAvailable       = "user_available"
	accountUserFrozen          = "user_frozen"
	accountPlatformCustody     = "platform_custody"
	accountPlatformFees        = "platform_fees"
	accountPlatformSwapDesk    = "platform_swap_desk"
	accountPlatformClearing    = "platform_clearing"
	accountPlatformAdjustments = "platform_adjustments"

	platformAccountId = "platform"
)

type posting struct {
	accountType string
	accountId   string
	currency    string
	debit       decimal.Decimal
	credit      decimal.Decimal
}

func debit(accountType, accountId, currency string, amount decimal.Decimal) posting {
	return posting{accountType, accountId, currency, amount, decimal.Zero}
}

func credit(accountType, accountId, currency string, amount decimal.Decimal) posting {
	return posting{accountType, accountId, currency, decimal.Zero, amount}
}

// postingsFor returns the double-entry lines a transaction contributes in its
// current status. Each currency balances on its own.
func postingsFor(t *models.Transaction) []posting {
	var out []posting
	user := t.UserId

	switch t.Type {
	case models.TransactionTypeDeposit:
		if t.Status == models.TransactionStatusCompleted {
			out = append(out,
				debit(accountPlatformCustody, platformAccountId, t.ToCurrency, t.Amount),
				credit(accountUserAvailable, user, t.ToCurrency, t.Amount))
		}

	case models.TransactionTypeWithdrawal:
		total := t.Amount.Add(t.Fee)
		switch t.Status {
		case models.TransactionStatusPending:
			out = append(out,
				debit(accountUserAvailable, user, t.FromCurrency, total),
				credit(accountUserFrozen, user, t.FromCurrency, total))
		case models.TransactionStatusCompleted:
			out = append(out,
				debit(accountUserFrozen, user, t.FromCurrency, total),
				credit(accountPlatformCustody, platformAccountId, t.FromCurrency, t.Amount),
				credit(accountPlatformFees, platformAccountId, t.FromCurrency, t.Fee))
		case models.TransactionStatusFailed, models.TransactionStatusCancelled:
			out = append(out,
				debit(accountUserFrozen, user, t.FromCurrency, total),
				credit(accountUserAvailable, user, t.FromCurrency, total))
		}

	case models.TransactionTypeSwap:
		if t.Status == models.TransactionStatusCompleted {
			out = append(out,
				debit(accountUserAvailable, user, t.FromCurrency, t.Amount),
				credit(accountPlatformSwapDesk, platformAccountId, t.FromCurrency, t.Amount),
				debit(accountPlatformSwapDesk, platformAccountId, t.ToCurrency, t.ReceivedAmount.Add(t.Fee)),
				credit(accountUserAvailable, user, t.ToCurrency, t.ReceivedAmount),
				credit(accountPlatformFees, platformAccountId, t.ToCurrency, t.Fee))
		}

	case models.TransactionTypeTransferOut:
		if t.Status == models.TransactionStatusCompleted {
			out = append(out,
				debit(accountUserAvailable, user, t.FromCurrency, t.Amount),
				credit(accountPlatformClearing, platformAccountId, t.FromCurrency, t.Amount))
		}

	case models.TransactionTypeTransferIn:
		if t.Status == models.TransactionStatusCompleted {
			out = append(out,
				debit(accountPlatformClearing, platformAccountId, t.ToCurrency, t.Amount),
				credit(accountUserAvailable, user, t.ToCurrency, t.Amount))
		}

	case models.TransactionTypeAdminAdjustment:
		if t.Status != models.TransactionStatusCompleted {
			break
		}
		if models.AdjustmentDirection(t.Metadata["direction"]) == models.AdjustmentDebit {
			out = append(out,
				debit(accountUserAvailable, user, t.FromCurrency, t.Amount),
				credit(accountPlatformAdjustments, platformAccountId, t.FromCurrency, t.Amount))
		} else {
			out = append(out,
				debit(accountPlatformAdjustments, platformAccountId, t.ToCurrency, t.Amount),
				credit(accountUserAvailable, user, t.ToCurrency, t.Amount))
		}
	}

	// zero lines carry no information
	filtered := out[:0]
	for _, p := range out {
		if !p.debit.IsZero() || !p.credit.IsZero() {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *SubledgerService) addJournalEntries(ctx context.Context, q querier, t *models.Transaction, at time.Time) error {
	for _, p := range postingsFor(t) {
		_, err := q.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), t.Id, p.accountType, p.accountId, p.currency,
			p.debit.String(), p.credit.String(), at)
		if err != nil {
			return fmt.Errorf("failed to insert journal entry for %s: %w", t.Id, err)
		}
	}
	return nil
}

// GetJournalEntries returns the postings recorded for one transaction
func (s *SubledgerService) GetJournalEntries(ctx context.Context, transactionId string) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetJournalEntries, transactionId)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entries: %w", err)
	}
	defer closeRows(rows)

	var entries []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		var debitStr, creditStr string
		if err := rows.Scan(&e.Id, &e.TransactionId, &e.AccountType, &e.AccountId, &e.Currency,
			&debitStr, &creditStr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if e.DebitAmount, err = parseDecimal("debit_amount", debitStr); err != nil {
			return nil, err
		}
		if e.CreditAmount, err = parseDecimal("credit_amount", creditStr); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}
	return entries, nil
}
