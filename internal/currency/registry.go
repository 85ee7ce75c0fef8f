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

package currency

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wallet-ledger-go/internal/balance"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrInvalidAmount is shared with the balance sheet so callers match one sentinel
	ErrInvalidAmount = balance.ErrInvalidAmount
)

// Currency describes how amounts of one currency are handled
type Currency struct {
	Symbol        string
	Precision     int32
	MinWithdrawal decimal.Decimal
	WithdrawalFee decimal.Decimal
	// ReferencePrice is a static USD quote, zero when none is configured
	ReferencePrice decimal.Decimal
}

// Truncate drops digits beyond the currency precision. It never rounds up.
func (c Currency) Truncate(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(c.Precision)
}

// ValidateAmount rejects non-positive amounts and amounts finer than the
// currency precision.
func (c Currency) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s amount must be positive, got %s", ErrInvalidAmount, c.Symbol, amount)
	}
	if !c.Truncate(amount).Equal(amount) {
		return fmt.Errorf("%w: %s supports %d decimal places, got %s", ErrInvalidAmount, c.Symbol, c.Precision, amount)
	}
	return nil
}

type currencyEntry struct {
	Symbol         string `yaml:"symbol"`
	Precision      int32  `yaml:"precision"`
	MinWithdrawal  string `yaml:"min_withdrawal"`
	WithdrawalFee  string `yaml:"withdrawal_fee"`
	ReferencePrice string `yaml:"reference_price"`
}

type currenciesFile struct {
	Currencies []currencyEntry `yaml:"currencies"`
}

// Registry is an immutable lookup of configured currencies
type Registry struct {
	bySymbol map[string]Currency
}

func NewRegistry(currencies []Currency) (*Registry, error) {
	r := &Registry{bySymbol: make(map[string]Currency, len(currencies))}
	for i, c := range currencies {
		symbol := strings.ToUpper(strings.TrimSpace(c.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("currency at index %d missing symbol", i)
		}
		if c.Precision < 0 || c.Precision > 18 {
			return nil, fmt.Errorf("currency %s precision must be between 0 and 18, got %d", symbol, c.Precision)
		}
		if c.MinWithdrawal.IsNegative() || c.WithdrawalFee.IsNegative() || c.ReferencePrice.IsNegative() {
			return nil, fmt.Errorf("currency %s has a negative limit, fee or price", symbol)
		}
		if _, dup := r.bySymbol[symbol]; dup {
			return nil, fmt.Errorf("currency %s configured twice", symbol)
		}
		c.Symbol = symbol
		r.bySymbol[symbol] = c
	}
	return r, nil
}

// Load reads the currency table from a YAML file. Relative paths resolve
// against the working directory.
func Load(currenciesFile string) (*Registry, error) {
	var path string
	if filepath.IsAbs(currenciesFile) {
		path = currenciesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, currenciesFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", currenciesFile, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var file currenciesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse currencies: %w", err)
	}
	if len(file.Currencies) == 0 {
		return nil, fmt.Errorf("no currencies configured")
	}

	currencies := make([]Currency, 0, len(file.Currencies))
	for i, entry := range file.Currencies {
		minWithdrawal, err := parseOptional(entry.MinWithdrawal)
		if err != nil {
			return nil, fmt.Errorf("currency at index %d: invalid min_withdrawal: %w", i, err)
		}
		fee, err := parseOptional(entry.WithdrawalFee)
		if err != nil {
			return nil, fmt.Errorf("currency at index %d: invalid withdrawal_fee: %w", i, err)
		}
		price, err := parseOptional(entry.ReferencePrice)
		if err != nil {
			return nil, fmt.Errorf("currency at index %d: invalid reference_price: %w", i, err)
		}
		currencies = append(currencies, Currency{
			Symbol:         entry.Symbol,
			Precision:      entry.Precision,
			MinWithdrawal:  minWithdrawal,
			WithdrawalFee:  fee,
			ReferencePrice: price,
		})
	}
	return NewRegistry(currencies)
}

// Get looks up a currency by symbol, case-insensitively
func (r *Registry) Get(symbol string) (Currency, error) {
	c, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, symbol)
	}
	return c, nil
}

// Symbols returns the configured symbols, sorted
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.bySymbol))
	for symbol := range r.bySymbol {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// ReferencePrices returns the configured static USD quotes
func (r *Registry) ReferencePrices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for symbol, c := range r.bySymbol {
		if c.ReferencePrice.IsPositive() {
			out[symbol] = c.ReferencePrice
		}
	}
	return out
}

func parseOptional(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}
