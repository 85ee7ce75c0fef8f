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

package common

import (
	"context"
	"fmt"
	"sort"

	"wallet-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ResolveAccountHolders returns the users a command-line report should cover.
// With a filter, only that user is returned; otherwise every user that has
// ever held a balance, sorted.
func ResolveAccountHolders(ctx context.Context, ledgerStore store.LedgerStore, userFilter string, logger *zap.Logger) ([]string, error) {
	if userFilter != "" {
		logger.Info("Filtering by user", zap.String("user_id", userFilter))
		return []string{userFilter}, nil
	}

	users, err := ledgerStore.ListBalanceHolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list account holders: %w", err)
	}
	sort.Strings(users)

	logger.Info("Retrieved account holders", zap.Int("count", len(users)))
	return users, nil
}
