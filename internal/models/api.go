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

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance represents a user's balance for a specific currency
type UserBalance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Frozen    decimal.Decimal `json:"frozen"`
	Total     decimal.Decimal `json:"total"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id             string          `json:"id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	FromCurrency   string          `json:"from_currency,omitempty"`
	ToCurrency     string          `json:"to_currency,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount,omitempty"`
	Fee            decimal.Decimal `json:"fee"`
	Reference      string          `json:"reference,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DepositResult represents the result of crediting a deposit
type DepositResult struct {
	PaymentId        string          `json:"payment_id"`
	UserId           string          `json:"user_id"`
	Currency         string          `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
	TransactionId    string          `json:"transaction_id,omitempty"`
	AlreadyProcessed bool            `json:"already_processed"`
}

// SwapResult represents the outcome of a currency swap
type SwapResult struct {
	Transaction *Transaction    `json:"transaction"`
	FromAmount  decimal.Decimal `json:"from_amount"`
	ToAmount    decimal.Decimal `json:"to_amount"`
	Fee         decimal.Decimal `json:"fee"`
	PriceFrom   decimal.Decimal `json:"price_from"`
	PriceTo     decimal.Decimal `json:"price_to"`
}
