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

// Package balance holds the in-memory balance sheet of one user. Every
// mutation keeps available and frozen non-negative; a failed mutation leaves
// the sheet untouched.
package balance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientFrozen = errors.New("insufficient frozen balance")
)

// Balance is one currency's position. Missing currencies read as zero.
type Balance struct {
	Available         decimal.Decimal
	Frozen            decimal.Decimal
	LifetimeDeposited decimal.Decimal
	LifetimeWithdrawn decimal.Decimal
}

func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Frozen)
}

// Sheet is a user's balances keyed by currency code
type Sheet struct {
	userId   string
	balances map[string]Balance
	dirty    map[string]struct{}
}

func NewSheet(userId string, balances map[string]Balance) *Sheet {
	copied := make(map[string]Balance, len(balances))
	for currency, b := range balances {
		copied[currency] = b
	}
	return &Sheet{
		userId:   userId,
		balances: copied,
		dirty:    make(map[string]struct{}),
	}
}

func (s *Sheet) UserId() string {
	return s.userId
}

func (s *Sheet) Get(currency string) Balance {
	b, ok := s.balances[currency]
	if !ok {
		return Balance{
			Available:         decimal.Zero,
			Frozen:            decimal.Zero,
			LifetimeDeposited: decimal.Zero,
			LifetimeWithdrawn: decimal.Zero,
		}
	}
	return b
}

func (s *Sheet) Available(currency string) decimal.Decimal {
	return s.Get(currency).Available
}

func (s *Sheet) Frozen(currency string) decimal.Decimal {
	return s.Get(currency).Frozen
}

// Credit increases available and lifetime deposited
func (s *Sheet) Credit(currency string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	b := s.Get(currency)
	b.Available = b.Available.Add(amount)
	b.LifetimeDeposited = b.LifetimeDeposited.Add(amount)
	s.set(currency, b)
	return nil
}

// Debit decreases available and increases lifetime withdrawn
func (s *Sheet) Debit(currency string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	b := s.Get(currency)
	if b.Available.LessThan(amount) {
		return fmt.Errorf("%w: %s available=%s, requested=%s", ErrInsufficientFunds, currency, b.Available, amount)
	}
	b.Available = b.Available.Sub(amount)
	b.LifetimeWithdrawn = b.LifetimeWithdrawn.Add(amount)
	s.set(currency, b)
	return nil
}

// Freeze moves amount from available to frozen
func (s *Sheet) Freeze(currency string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	b := s.Get(currency)
	if b.Available.LessThan(amount) {
		return fmt.Errorf("%w: %s available=%s, requested=%s", ErrInsufficientFunds, currency, b.Available, amount)
	}
	b.Available = b.Available.Sub(amount)
	b.Frozen = b.Frozen.Add(amount)
	s.set(currency, b)
	return nil
}

// Unfreeze moves amount from frozen back to available
func (s *Sheet) Unfreeze(currency string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	b := s.Get(currency)
	if b.Frozen.LessThan(amount) {
		return fmt.Errorf("%w: %s frozen=%s, requested=%s", ErrInsufficientFrozen, currency, b.Frozen, amount)
	}
	b.Frozen = b.Frozen.Sub(amount)
	b.Available = b.Available.Add(amount)
	s.set(currency, b)
	return nil
}

// BurnFrozen removes amount from frozen for good. The funds have left the
// platform, so lifetime withdrawn grows by the same amount.
func (s *Sheet) BurnFrozen(currency string, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	b := s.Get(currency)
	if b.Frozen.LessThan(amount) {
		return fmt.Errorf("%w: %s frozen=%s, requested=%s", ErrInsufficientFrozen, currency, b.Frozen, amount)
	}
	b.Frozen = b.Frozen.Sub(amount)
	b.LifetimeWithdrawn = b.LifetimeWithdrawn.Add(amount)
	s.set(currency, b)
	return nil
}

// Currencies returns every currency held, sorted
func (s *Sheet) Currencies() []string {
	out := make([]string, 0, len(s.balances))
	for currency := range s.balances {
		out = append(out, currency)
	}
	sort.Strings(out)
	return out
}

// Dirty returns the currencies mutated since the sheet was loaded, sorted
func (s *Sheet) Dirty() []string {
	out := make([]string, 0, len(s.dirty))
	for currency := range s.dirty {
		out = append(out, currency)
	}
	sort.Strings(out)
	return out
}

func (s *Sheet) set(currency string, b Balance) {
	s.balances[currency] = b
	s.dirty[currency] = struct{}{}
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	return nil
}
