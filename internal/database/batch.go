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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jastip-settlement-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// CommitBatch applies every op in one SQL transaction. Conditional updates
// that match no row surface as store.ErrConcurrentModification and roll the
// whole batch back. The returned time is the server time stamped on all rows.
func (s *Service) CommitBatch(ctx context.Context, batch *store.Batch) (time.Time, error) {
	if batch == nil || batch.Len() == 0 {
		return time.Time{}, fmt.Errorf("cannot commit empty batch")
	}

	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, op := range batch.Ops() {
		if err := s.applyOp(ctx, tx, op, now); err != nil {
			return time.Time{}, fmt.Errorf("batch op %d (%T): %w", i, op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Debug("Batch committed", zap.Int("ops", batch.Len()), zap.Time("server_time", now))
	return now, nil
}

func (s *Service) applyOp(ctx context.Context, tx *sql.Tx, op store.Op, now time.Time) error {
	ts := toMillis(now)

	switch o := op.(type) {
	case store.CompleteTransactionOp:
		query := queryCompleteTransaction
		if o.RequireNoActiveReturn {
			query = queryCompleteUndisputedTransaction
		}
		result, err := tx.ExecContext(ctx, query, ts, ts, ts, o.TransactionId, string(o.From))
		if err != nil {
			return fmt.Errorf("failed to complete transaction %s: %w", o.TransactionId, err)
		}
		return expectOneRow(result, "transaction "+o.TransactionId)

	case store.RefundTransactionOp:
		result, err := tx.ExecContext(ctx, queryRefundTransaction,
			ts, ts, toMinor(o.RefundAmount), o.RefundReason, o.TransactionId, string(o.From))
		if err != nil {
			return fmt.Errorf("failed to refund transaction %s: %w", o.TransactionId, err)
		}
		return expectOneRow(result, "transaction "+o.TransactionId)

	case store.ResolveReturnOp:
		result, err := tx.ExecContext(ctx, queryResolveReturnRequest,
			string(o.To), ts, o.ResponseReason, o.ReturnRequestId, string(o.From))
		if err != nil {
			return fmt.Errorf("failed to resolve return request %s: %w", o.ReturnRequestId, err)
		}
		return expectOneRow(result, "return request "+o.ReturnRequestId)

	case store.IncrementSaldoOp:
		return s.incrementSaldo(ctx, tx, o.UserId, o.Amount)

	case store.AppendRefundLogOp:
		l := o.Log
		if l.Id == "" {
			l.Id = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, queryInsertRefundLog,
			l.Id, l.TransactionId, l.ReturnRequestId, l.BuyerId, l.SellerId,
			toMinor(l.RefundAmount), toMinor(l.OriginalAmount), toMinor(l.EscrowAmount),
			l.Reason, l.BuyerReason, l.SellerResponse, ts, l.ProcessedBy, l.Type)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: transaction %s request %s", store.ErrDuplicateRefundLog, l.TransactionId, l.ReturnRequestId)
			}
			return fmt.Errorf("failed to insert refund log: %w", err)
		}
		return nil
	}

	return fmt.Errorf("unsupported batch op %T", op)
}

func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s no longer matches: %w", what, store.ErrConcurrentModification)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
