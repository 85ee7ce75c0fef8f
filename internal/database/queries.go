/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// Balance queries
	balanceColumns = `id, user_id, currency, available, frozen, lifetime_deposited, lifetime_withdrawn,
		COALESCE(last_transaction_id, ''), version, updated_at`

	queryGetBalance = `
		SELECT ` + balanceColumns + `
		FROM account_balances
		WHERE user_id = ? AND currency = ?`

	queryGetAllUserBalances = `
		SELECT ` + balanceColumns + `
		FROM account_balances
		WHERE user_id = ?
		ORDER BY currency`

	queryListBalanceHolders = `
		SELECT DISTINCT user_id
		FROM account_balances
		ORDER BY user_id`

	queryLoadSheet = `
		SELECT id, currency, available, frozen, lifetime_deposited, lifetime_withdrawn, version
		FROM account_balances
		WHERE user_id = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (
			id, user_id, currency, available, frozen, lifetime_deposited, lifetime_withdrawn,
			last_transaction_id, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET available = ?, frozen = ?, lifetime_deposited = ?, lifetime_withdrawn = ?,
		    last_transaction_id = COALESCE(NULLIF(?, ''), last_transaction_id), version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryReconcileJournal = `
		SELECT account_type, debit_amount, credit_amount
		FROM journal_entries
		WHERE account_id = ? AND currency = ? AND account_type IN ('user_available', 'user_frozen')`

	// Transaction queries
	transactionColumns = `id, user_id, transaction_type, status, from_currency, to_currency,
		amount, received_amount, fee, external_reference, metadata, created_at, updated_at`

	queryInsertTransaction = `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	queryFindTransactionByReference = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transaction_type = ? AND external_reference = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`

	queryUpdateTransactionStatus = `
		UPDATE transactions
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND (from_currency = ? OR to_currency = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, currency, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetJournalEntries = `
		SELECT id, transaction_id, account_type, account_id, currency, debit_amount, credit_amount, created_at
		FROM journal_entries
		WHERE transaction_id = ?
		ORDER BY rowid`

	// Withdrawal queries
	withdrawalColumns = `id, user_id, currency, amount, fee, to_address, status, priority, transaction_id,
		processed_by, tx_hash, failure_reason, created_at, updated_at`

	queryInsertWithdrawal = `
		INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWithdrawal = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE id = ?`

	queryUpdateWithdrawal = `
		UPDATE withdrawals
		SET status = ?, processed_by = ?, tx_hash = ?, failure_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	queryListWithdrawalsByStatus = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE status = ?
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END, created_at, rowid
		LIMIT ?`

	queryListWithdrawals = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	// Deposit queries
	depositColumns = `id, user_id, order_id, payment_id, currency, amount, pay_currency, pay_amount,
		pay_address, actually_paid, status, completed_at, created_at, updated_at`

	queryInsertDeposit = `
		INSERT INTO deposits (` + depositColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetDepositByPaymentId = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE payment_id = ?`

	queryUpdateDepositStatus = `
		UPDATE deposits
		SET status = ?, actually_paid = ?, updated_at = ?
		WHERE payment_id = ?`

	queryMarkDepositCompleted = `
		UPDATE deposits
		SET completed_at = ?, updated_at = ?
		WHERE payment_id = ? AND completed_at IS NULL`

	queryListOpenDeposits = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE completed_at IS NULL
			AND status NOT IN ('failed', 'refunded', 'expired')
			AND created_at >= ?
		ORDER BY created_at ASC
		LIMIT ?`
)
