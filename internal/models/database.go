package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance represents current balance state for one user and currency (hot data)
type AccountBalance struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	Currency          string          `db:"currency"`
	Available         decimal.Decimal `db:"available"`
	Frozen            decimal.Decimal `db:"frozen"`
	LifetimeDeposited decimal.Decimal `db:"lifetime_deposited"`
	LifetimeWithdrawn decimal.Decimal `db:"lifetime_withdrawn"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Total is available plus frozen
func (b AccountBalance) Total() decimal.Decimal {
	return b.Available.Add(b.Frozen)
}

// Transaction represents an immutable money movement record (cold data).
// Only Status and UpdatedAt change after insert.
type Transaction struct {
	Id                string            `db:"id"`
	UserId            string            `db:"user_id"`
	Type              TransactionType   `db:"transaction_type"`
	Status            TransactionStatus `db:"status"`
	FromCurrency      string            `db:"from_currency"`
	ToCurrency        string            `db:"to_currency"`
	Amount            decimal.Decimal   `db:"amount"`
	ReceivedAmount    decimal.Decimal   `db:"received_amount"`
	Fee               decimal.Decimal   `db:"fee"`
	ExternalReference string            `db:"external_reference"`
	Metadata          map[string]string `db:"metadata"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
}

// Withdrawal is a user's request to move funds off-platform. It owns a frozen
// reservation of Amount+Fee until it reaches a terminal status.
type Withdrawal struct {
	Id            string             `db:"id"`
	UserId        string             `db:"user_id"`
	Currency      string             `db:"currency"`
	Amount        decimal.Decimal    `db:"amount"`
	Fee           decimal.Decimal    `db:"fee"`
	ToAddress     string             `db:"to_address"`
	Status        WithdrawalStatus   `db:"status"`
	Priority      WithdrawalPriority `db:"priority"`
	TransactionId string             `db:"transaction_id"`
	ProcessedBy   string             `db:"processed_by"`
	TxHash        string             `db:"tx_hash"`
	FailureReason string             `db:"failure_reason"`
	CreatedAt     time.Time          `db:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at"`
}

// Total is the frozen reservation held by the withdrawal
func (w Withdrawal) Total() decimal.Decimal {
	return w.Amount.Add(w.Fee)
}

// Deposit mirrors one payment created at the external processor
type Deposit struct {
	Id           string          `db:"id"`
	UserId       string          `db:"user_id"`
	OrderId      string          `db:"order_id"`
	PaymentId    string          `db:"payment_id"`
	Currency     string          `db:"currency"`
	Amount       decimal.Decimal `db:"amount"`
	PayCurrency  string          `db:"pay_currency"`
	PayAmount    decimal.Decimal `db:"pay_amount"`
	PayAddress   string          `db:"pay_address"`
	ActuallyPaid decimal.Decimal `db:"actually_paid"`
	Status       DepositStatus   `db:"status"`
	CompletedAt  *time.Time      `db:"completed_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// JournalEntry is one side of a double-entry posting
type JournalEntry struct {
	Id            string          `db:"id"`
	TransactionId string          `db:"transaction_id"`
	AccountType   string          `db:"account_type"`
	AccountId     string          `db:"account_id"`
	Currency      string          `db:"currency"`
	DebitAmount   decimal.Decimal `db:"debit_amount"`
	CreditAmount  decimal.Decimal `db:"credit_amount"`
	CreatedAt     time.Time       `db:"created_at"`
}
