package store

import (
	"context"
	"errors"
	"time"

	"wallet-ledger-go/internal/balance"
	"wallet-ledger-go/internal/currency"
	"wallet-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the ledger. Callers match them with errors.Is.
var (
	ErrInvalidAmount      = balance.ErrInvalidAmount
	ErrInsufficientFunds  = balance.ErrInsufficientFunds
	ErrInsufficientFrozen = balance.ErrInsufficientFrozen
	ErrInvalidCurrency    = currency.ErrUnknownCurrency
	ErrInvalidState       = errors.New("invalid state transition")
	// ErrAlreadyProcessed marks an idempotent no-op, not a failure
	ErrAlreadyProcessed = errors.New("already processed")
	ErrUnknownPayment   = errors.New("unknown payment")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidRequest   = errors.New("invalid request")

	// ErrInvalidAdjustment rejects admin adjustments missing a reason or operator
	ErrInvalidAdjustment = errors.New("invalid adjustment")

	ErrNotFound               = errors.New("not found")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Tx is the unit of work handed to RunInTx. Everything done through it
// commits together or not at all.
type Tx interface {
	// Sheet loads a user's balances. Repeated calls for the same user return
	// the same sheet; mutations are written back at commit.
	Sheet(ctx context.Context, userId string) (*balance.Sheet, error)

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) error
	FindTransaction(ctx context.Context, txType models.TransactionType, externalReference string) (*models.Transaction, error)

	InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error)
	// UpdateWithdrawal persists w only if the stored status still equals from
	UpdateWithdrawal(ctx context.Context, w *models.Withdrawal, from models.WithdrawalStatus) error

	GetDepositByPaymentId(ctx context.Context, paymentId string) (*models.Deposit, error)
	UpdateDepositStatus(ctx context.Context, paymentId string, status models.DepositStatus, actuallyPaid decimal.Decimal) error
	// MarkDepositCompleted returns ErrAlreadyProcessed if completed_at was already set
	MarkDepositCompleted(ctx context.Context, paymentId string, at time.Time) error
}

// LedgerStore defines the contract the durable backend must satisfy.
type LedgerStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// --- Balances ---
	GetBalance(ctx context.Context, userId, currency string) (models.AccountBalance, error)
	GetAllBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)
	ListBalanceHolders(ctx context.Context) ([]string, error)
	ReconcileBalance(ctx context.Context, userId, currency string) error

	// --- Transactions ---
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, userId, currency string, limit, offset int) ([]models.Transaction, error)
	GetJournalEntries(ctx context.Context, transactionId string) ([]models.JournalEntry, error)

	// --- Withdrawals ---
	GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error)

	// --- Deposits ---
	CreateDeposit(ctx context.Context, d *models.Deposit) error
	GetDepositByPaymentId(ctx context.Context, paymentId string) (*models.Deposit, error)
	ListOpenDeposits(ctx context.Context, since time.Time, limit int) ([]models.Deposit, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
