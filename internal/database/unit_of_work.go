package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"wallet-ledger-go/internal/balance"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceRow struct {
	id      string
	version int64
}

type loadedSheet struct {
	sheet *balance.Sheet
	rows  map[string]balanceRow
}

// unitOfWork implements store.Tx on top of one SQL transaction. Sheets are
// loaded once per user and written back by flush with a version check.
type unitOfWork struct {
	tx        *sql.Tx
	subledger *SubledgerService
	sheets    map[string]*loadedSheet
	lastTxId  map[string]string
}

var _ store.Tx = (*unitOfWork)(nil)

func newUnitOfWork(tx *sql.Tx, subledger *SubledgerService) *unitOfWork {
	return &unitOfWork{
		tx:        tx,
		subledger: subledger,
		sheets:    make(map[string]*loadedSheet),
		lastTxId:  make(map[string]string),
	}
}

func (u *unitOfWork) Sheet(ctx context.Context, userId string) (*balance.Sheet, error) {
	if loaded, ok := u.sheets[userId]; ok {
		return loaded.sheet, nil
	}

	rows, err := u.tx.QueryContext(ctx, queryLoadSheet, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	defer closeRows(rows)

	balances := make(map[string]balance.Balance)
	rowIds := make(map[string]balanceRow)
	for rows.Next() {
		var id, currency, available, frozen, deposited, withdrawn string
		var version int64
		if err := rows.Scan(&id, &currency, &available, &frozen, &deposited, &withdrawn, &version); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}

		var b balance.Balance
		if b.Available, err = parseDecimal("available", available); err != nil {
			return nil, err
		}
		if b.Frozen, err = parseDecimal("frozen", frozen); err != nil {
			return nil, err
		}
		if b.LifetimeDeposited, err = parseDecimal("lifetime_deposited", deposited); err != nil {
			return nil, err
		}
		if b.LifetimeWithdrawn, err = parseDecimal("lifetime_withdrawn", withdrawn); err != nil {
			return nil, err
		}
		balances[currency] = b
		rowIds[currency] = balanceRow{id: id, version: version}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	sheet := balance.NewSheet(userId, balances)
	u.sheets[userId] = &loadedSheet{sheet: sheet, rows: rowIds}
	return sheet, nil
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	if err := u.subledger.insertTransaction(ctx, u.tx, t); err != nil {
		return err
	}
	u.lastTxId[t.UserId] = t.Id
	return nil
}

func (u *unitOfWork) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	return u.subledger.updateTransactionStatus(ctx, u.tx, id, status)
}

func (u *unitOfWork) FindTransaction(ctx context.Context, txType models.TransactionType, externalReference string) (*models.Transaction, error) {
	return u.subledger.findTransaction(ctx, u.tx, txType, externalReference)
}

func (u *unitOfWork) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return insertWithdrawal(ctx, u.tx, w)
}

func (u *unitOfWork) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	return getWithdrawal(ctx, u.tx, id)
}

func (u *unitOfWork) UpdateWithdrawal(ctx context.Context, w *models.Withdrawal, from models.WithdrawalStatus) error {
	return updateWithdrawal(ctx, u.tx, w, from)
}

func (u *unitOfWork) GetDepositByPaymentId(ctx context.Context, paymentId string) (*models.Deposit, error) {
	return getDepositByPaymentId(ctx, u.tx, paymentId)
}

func (u *unitOfWork) UpdateDepositStatus(ctx context.Context, paymentId string, status models.DepositStatus, actuallyPaid decimal.Decimal) error {
	return updateDepositStatus(ctx, u.tx, paymentId, status, actuallyPaid)
}

func (u *unitOfWork) MarkDepositCompleted(ctx context.Context, paymentId string, at time.Time) error {
	return markDepositCompleted(ctx, u.tx, paymentId, at)
}

// flush writes every mutated balance back. A row changed by someone else
// since it was loaded fails the whole unit with ErrConcurrentModification.
func (u *unitOfWork) flush(ctx context.Context) error {
	userIds := make([]string, 0, len(u.sheets))
	for userId := range u.sheets {
		userIds = append(userIds, userId)
	}
	sort.Strings(userIds)

	now := time.Now().UTC()
	for _, userId := range userIds {
		loaded := u.sheets[userId]
		lastTxId := u.lastTxId[userId]

		for _, currency := range loaded.sheet.Dirty() {
			b := loaded.sheet.Get(currency)
			if b.Available.IsNegative() || b.Frozen.IsNegative() {
				return fmt.Errorf("refusing to persist negative balance for %s %s", userId, currency)
			}

			row, exists := loaded.rows[currency]
			if !exists {
				_, err := u.tx.ExecContext(ctx, queryInsertAccountBalance,
					uuid.New().String(), userId, currency,
					b.Available.String(), b.Frozen.String(), b.LifetimeDeposited.String(), b.LifetimeWithdrawn.String(),
					lastTxId, now)
				if err != nil {
					if isUniqueViolation(err) {
						return fmt.Errorf("balance create failed - %w", ErrConcurrentModification)
					}
					return fmt.Errorf("failed to create account balance: %w", err)
				}
				continue
			}

			result, err := u.tx.ExecContext(ctx, queryUpdateAccountBalance,
				b.Available.String(), b.Frozen.String(), b.LifetimeDeposited.String(), b.LifetimeWithdrawn.String(),
				lastTxId, now, row.id, row.version)
			if err != nil {
				return fmt.Errorf("failed to update balance: %w", err)
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check rows affected: %w", err)
			}
			if rowsAffected == 0 {
				zap.L().Warn("Balance version changed underneath unit of work",
					zap.String("user_id", userId),
					zap.String("currency", currency),
					zap.Int64("expected_version", row.version))
				return fmt.Errorf("balance update failed - %w", ErrConcurrentModification)
			}
		}
	}
	return nil
}
