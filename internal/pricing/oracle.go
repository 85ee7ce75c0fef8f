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

package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrPriceNotFound = errors.New("price not found")

// Oracle quotes the price of one unit of a currency in a common reference unit
type Oracle interface {
	GetPrice(ctx context.Context, currency string) (decimal.Decimal, error)
}

// StaticOracle serves prices from memory. Set replaces a quote atomically.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

var _ Oracle = (*StaticOracle)(nil)

func NewStaticOracle(prices map[string]decimal.Decimal) *StaticOracle {
	o := &StaticOracle{prices: make(map[string]decimal.Decimal, len(prices))}
	for symbol, price := range prices {
		o.prices[strings.ToUpper(symbol)] = price
	}
	return o
}

func (o *StaticOracle) GetPrice(_ context.Context, currency string) (decimal.Decimal, error) {
	o.mu.RLock()
	price, ok := o.prices[strings.ToUpper(currency)]
	o.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceNotFound, currency)
	}
	return price, nil
}

func (o *StaticOracle) Set(currency string, price decimal.Decimal) {
	o.mu.Lock()
	o.prices[strings.ToUpper(currency)] = price
	o.mu.Unlock()
}

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// CachedOracle fronts a slower oracle. Concurrent misses for the same
// currency share one upstream call.
type CachedOracle struct {
	upstream Oracle
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[string]cachedPrice
	sf    singleflight.Group
	now   func() time.Time
}

var _ Oracle = (*CachedOracle)(nil)

func NewCachedOracle(upstream Oracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{
		upstream: upstream,
		ttl:      ttl,
		cache:    make(map[string]cachedPrice),
		now:      time.Now,
	}
}

func (o *CachedOracle) GetPrice(ctx context.Context, currency string) (decimal.Decimal, error) {
	symbol := strings.ToUpper(currency)

	o.mu.RLock()
	entry, ok := o.cache[symbol]
	o.mu.RUnlock()
	if ok && o.now().Sub(entry.fetchedAt) < o.ttl {
		return entry.price, nil
	}

	v, err, _ := o.sf.Do(symbol, func() (any, error) {
		price, err := o.upstream.GetPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.cache[symbol] = cachedPrice{price: price, fetchedAt: o.now()}
		o.mu.Unlock()
		zap.L().Debug("Refreshed price", zap.String("currency", symbol), zap.String("price", price.String()))
		return price, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}
