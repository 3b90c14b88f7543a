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

	"jastip-settlement-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id    string
	Name  string
	Email string
	Saldo decimal.Decimal
}

// UserFilter narrows LookupUsers to one user. At most one field should be set.
type UserFilter struct {
	Id    string
	Email string
}

// LookupUsers returns the user matching filter, or every user when the
// filter is empty.
func LookupUsers(ctx context.Context, ledger store.LedgerStore, filter UserFilter) ([]UserInfo, error) {
	switch {
	case filter.Id != "":
		zap.L().Info("Looking up user by id", zap.String("user_id", filter.Id))
		user, err := ledger.GetUserById(ctx, filter.Id)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return []UserInfo{toUserInfo(user.Id, user.Name, user.Email, user.Saldo)}, nil

	case filter.Email != "":
		zap.L().Info("Looking up user by email", zap.String("email", filter.Email))
		user, err := ledger.GetUserByEmail(ctx, filter.Email)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return []UserInfo{toUserInfo(user.Id, user.Name, user.Email, user.Saldo)}, nil
	}

	all, err := ledger.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	users := make([]UserInfo, 0, len(all))
	for _, u := range all {
		users = append(users, toUserInfo(u.Id, u.Name, u.Email, u.Saldo))
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func toUserInfo(id, name, email string, saldo decimal.Decimal) UserInfo {
	return UserInfo{Id: id, Name: name, Email: email, Saldo: saldo}
}
