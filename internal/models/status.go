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

package models

type TransactionType string

const (
	TransactionTypeDeposit         TransactionType = "deposit"
	TransactionTypeWithdrawal      TransactionType = "withdrawal"
	TransactionTypeTransferIn      TransactionType = "transfer_in"
	TransactionTypeTransferOut     TransactionType = "transfer_out"
	TransactionTypeSwap            TransactionType = "swap"
	TransactionTypeAdminAdjustment TransactionType = "admin_adjustment"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusCancelled  WithdrawalStatus = "cancelled"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending: {
		WithdrawalStatusProcessing,
		WithdrawalStatusCompleted,
		WithdrawalStatusFailed,
		WithdrawalStatusCancelled,
	},
	WithdrawalStatusProcessing: {
		WithdrawalStatusCompleted,
		WithdrawalStatusFailed,
	},
}

// IsTerminal reports whether no transition leaves this status
func (s WithdrawalStatus) IsTerminal() bool {
	return len(withdrawalTransitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransactionStatus returns the status the paired transaction record takes
// when the withdrawal enters s.
func (s WithdrawalStatus) TransactionStatus() TransactionStatus {
	switch s {
	case WithdrawalStatusCompleted:
		return TransactionStatusCompleted
	case WithdrawalStatusFailed:
		return TransactionStatusFailed
	case WithdrawalStatusCancelled:
		return TransactionStatusCancelled
	default:
		return TransactionStatusPending
	}
}

type WithdrawalPriority string

const (
	WithdrawalPriorityLow    WithdrawalPriority = "low"
	WithdrawalPriorityNormal WithdrawalPriority = "normal"
	WithdrawalPriorityHigh   WithdrawalPriority = "high"
)

// ParseWithdrawalPriority maps empty input to normal
func ParseWithdrawalPriority(s string) (WithdrawalPriority, bool) {
	switch WithdrawalPriority(s) {
	case "":
		return WithdrawalPriorityNormal, true
	case WithdrawalPriorityLow, WithdrawalPriorityNormal, WithdrawalPriorityHigh:
		return WithdrawalPriority(s), true
	}
	return "", false
}

// DepositStatus mirrors the payment processor's payment states
type DepositStatus string

const (
	DepositStatusWaiting       DepositStatus = "waiting"
	DepositStatusConfirming    DepositStatus = "confirming"
	DepositStatusConfirmed     DepositStatus = "confirmed"
	DepositStatusSending       DepositStatus = "sending"
	DepositStatusPartiallyPaid DepositStatus = "partially_paid"
	DepositStatusFinished      DepositStatus = "finished"
	DepositStatusFailed        DepositStatus = "failed"
	DepositStatusRefunded      DepositStatus = "refunded"
	DepositStatusExpired       DepositStatus = "expired"
)

func (s DepositStatus) Valid() bool {
	switch s {
	case DepositStatusWaiting, DepositStatusConfirming, DepositStatusConfirmed,
		DepositStatusSending, DepositStatusPartiallyPaid, DepositStatusFinished,
		DepositStatusFailed, DepositStatusRefunded, DepositStatusExpired:
		return true
	}
	return false
}

type AdjustmentDirection string

const (
	AdjustmentCredit AdjustmentDirection = "credit"
	AdjustmentDebit  AdjustmentDirection = "debit"
)
