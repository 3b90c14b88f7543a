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

	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"

	"go.uber.org/zap"
)

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var status string
	var amount, escrowAmount, createdAt int64
	var deliveredAt, completedAt, refundedAt, releaseAt, autoCompletedAt, rating, refundAmount sql.NullInt64

	err := row.Scan(&t.Id, &t.BuyerId, &t.SellerId, &amount, &escrowAmount, &t.IsEscrow, &status,
		&deliveredAt, &completedAt, &refundedAt, &releaseAt,
		&t.AutoCompleted, &autoCompletedAt, &rating, &refundAmount, &t.RefundReason, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Status, err = models.ParseTransactionStatus(status)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", t.Id, err)
	}
	t.Amount = fromMinor(amount)
	t.EscrowAmount = fromMinor(escrowAmount)
	t.DeliveredAt = fromNullMillis(deliveredAt)
	t.CompletedAt = fromNullMillis(completedAt)
	t.RefundedAt = fromNullMillis(refundedAt)
	t.ReleaseToSellerAt = fromNullMillis(releaseAt)
	t.AutoCompletedAt = fromNullMillis(autoCompletedAt)
	t.RefundAmount = fromNullMinor(refundAmount)
	t.CreatedAt = fromMillis(createdAt)
	if rating.Valid {
		r := int(rating.Int64)
		t.Rating = &r
	}
	return &t, nil
}

// InsertTransaction stores a transaction created by checkout.
func (s *Service) InsertTransaction(ctx context.Context, t models.Transaction) error {
	if _, err := models.ParseTransactionStatus(string(t.Status)); err != nil {
		return err
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	var rating sql.NullInt64
	if t.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*t.Rating), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, queryInsertTransaction,
		t.Id, t.BuyerId, t.SellerId, toMinor(t.Amount), toMinor(t.EscrowAmount), t.IsEscrow, string(t.Status),
		nullMillis(t.DeliveredAt), nullMillis(t.CompletedAt), nullMillis(t.RefundedAt), nullMillis(t.ReleaseToSellerAt),
		t.AutoCompleted, nullMillis(t.AutoCompletedAt), rating, nullMinor(t.RefundAmount), t.RefundReason,
		toMillis(createdAt))
	if err != nil {
		return fmt.Errorf("unable to insert transaction %s: %w", t.Id, err)
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, queryGetTransaction, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("unable to query transaction %s: %w", id, err)
	}
	return t, nil
}

// ListSettlementCandidates returns delivered, uncompleted transactions whose
// delivery is at or before deliveredBefore, ordered by (delivered_at, id) and
// starting after the cursor, at most limit rows.
func (s *Service) ListSettlementCandidates(ctx context.Context, deliveredBefore time.Time, after store.Cursor, limit int) ([]models.Transaction, error) {
	zap.L().Debug("Querying settlement candidates",
		zap.Time("delivered_before", deliveredBefore),
		zap.String("after_id", after.Id),
		zap.Int("limit", limit))

	afterMs := cursorMillis(after)
	rows, err := s.db.QueryContext(ctx, querySettlementCandidates,
		toMillis(deliveredBefore), afterMs, afterMs, after.Id, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query settlement candidates: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var candidates []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan transaction row: %w", err)
		}
		candidates = append(candidates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return candidates, nil
}
