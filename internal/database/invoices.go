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

	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreateInvoice(ctx context.Context, params store.CreateInvoiceParams) (*models.Invoice, error) {
	zap.L().Info("Storing invoice",
		zap.String("external_id", params.ExternalId),
		zap.String("user_id", params.UserId),
		zap.String("amount", params.Amount.String()))

	now := toMillis(s.now())
	_, err := s.db.ExecContext(ctx, queryInsertInvoice,
		params.ExternalId, params.UserId, toMinor(params.Amount), string(models.InvoicePending),
		params.GatewayInvoiceId, now, now)
	if err != nil {
		return nil, fmt.Errorf("unable to insert invoice: %w", err)
	}
	return s.GetInvoice(ctx, params.ExternalId)
}

func (s *Service) GetInvoice(ctx context.Context, externalId string) (*models.Invoice, error) {
	var inv models.Invoice
	var status string
	var amount, createdAt, updatedAt int64
	var paidAt, paidAmount sql.NullInt64

	err := s.db.QueryRowContext(ctx, queryGetInvoice, externalId).Scan(
		&inv.ExternalId, &inv.UserId, &amount, &status, &inv.GatewayInvoiceId,
		&createdAt, &updatedAt, &paidAt, &paidAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s", store.ErrNotFound, externalId)
		}
		return nil, fmt.Errorf("unable to query invoice %s: %w", externalId, err)
	}

	inv.Status = models.InvoiceStatus(status)
	inv.Amount = fromMinor(amount)
	inv.CreatedAt = fromMillis(createdAt)
	inv.UpdatedAt = fromMillis(updatedAt)
	inv.PaidAt = fromNullMillis(paidAt)
	inv.PaidAmount = fromNullMinor(paidAmount)
	return &inv, nil
}

// UpdateInvoiceStatus records a non-paid gateway status. Paid invoices are never regressed.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, externalId string, status models.InvoiceStatus) error {
	result, err := s.db.ExecContext(ctx, queryUpdateInvoiceStatus, string(status), toMillis(s.now()), externalId)
	if err != nil {
		return fmt.Errorf("unable to update invoice %s: %w", externalId, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetInvoice(ctx, externalId); err != nil {
			return err
		}
	}
	return nil
}

// MarkInvoicePaid flips an invoice to PAID and credits the owner's saldo in
// one transaction. It reports false when the invoice was already paid, so the
// webhook and the status check can never credit twice.
func (s *Service) MarkInvoicePaid(ctx context.Context, externalId string, paidAmount decimal.Decimal) (bool, error) {
	now := toMillis(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Guard and flip in one statement; no rows means paid or missing.
	var userId string
	err = tx.QueryRowContext(ctx, queryMarkInvoicePaid, now, toMinor(paidAmount), now, externalId).Scan(&userId)
	if errors.Is(err, sql.ErrNoRows) {
		var owner string
		if err := tx.QueryRowContext(ctx, queryGetInvoiceOwner, externalId).Scan(&owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, fmt.Errorf("%w: invoice %s", store.ErrNotFound, externalId)
			}
			return false, fmt.Errorf("unable to query invoice owner: %w", err)
		}
		zap.L().Info("Invoice already paid, skipping credit", zap.String("external_id", externalId))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unable to mark invoice %s paid: %w", externalId, err)
	}

	if paidAmount.IsPositive() {
		if err := s.incrementSaldo(ctx, tx, userId, paidAmount); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Invoice paid, saldo credited",
		zap.String("external_id", externalId),
		zap.String("user_id", userId),
		zap.String("amount", paidAmount.String()))
	return true, nil
}
