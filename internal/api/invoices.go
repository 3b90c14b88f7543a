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

package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"
	"jastip-settlement-go/internal/xendit"

	"go.uber.org/zap"
)

const topUpPrefix = "topup-"

// CreateTopUpInvoice opens a gateway invoice for a saldo top-up and records it as PENDING
func (s *LedgerService) CreateTopUpInvoice(ctx context.Context, req models.CreateInvoiceRequest) (*models.CreateInvoiceResponse, error) {
	if req.UserId == "" || req.Email == "" || !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount, userId and email are required", ErrInvalidRequest)
	}
	if s.gateway == nil {
		return nil, ErrGatewayDisabled
	}

	if _, err := s.store.GetUserById(ctx, req.UserId); err != nil {
		return nil, err
	}

	now, err := s.store.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read server time: %w", err)
	}
	externalId := fmt.Sprintf("%s%s-%d", topUpPrefix, req.UserId, now.UnixMilli())

	invoice, err := s.gateway.CreateInvoice(ctx, xendit.CreateInvoiceParams{
		ExternalId:  externalId,
		Amount:      req.Amount,
		PayerEmail:  req.Email,
		Description: fmt.Sprintf("Saldo top-up for user %s", req.UserId),
	})
	if err != nil {
		zap.L().Error("Failed to create gateway invoice",
			zap.String("user_id", req.UserId),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, err
	}

	if _, err := s.store.CreateInvoice(ctx, store.CreateInvoiceParams{
		ExternalId:       externalId,
		UserId:           req.UserId,
		Amount:           req.Amount,
		GatewayInvoiceId: invoice.Id,
	}); err != nil {
		zap.L().Error("Gateway invoice created but not stored",
			zap.String("external_id", externalId),
			zap.String("invoice_id", invoice.Id),
			zap.Error(err))
		return nil, err
	}

	return &models.CreateInvoiceResponse{
		InvoiceUrl: invoice.InvoiceUrl,
		ExternalId: externalId,
	}, nil
}

// CheckInvoice returns the invoice status, refreshing it from the gateway
// while it is not yet paid. The first PAID observation credits the owner.
func (s *LedgerService) CheckInvoice(ctx context.Context, externalId string) (models.InvoiceStatus, error) {
	local, err := s.store.GetInvoice(ctx, externalId)
	if err != nil {
		return "", err
	}
	if local.Status.IsPaid() {
		return models.InvoicePaid, nil
	}
	if s.gateway == nil {
		return "", ErrGatewayDisabled
	}

	remote, err := s.gateway.GetInvoiceByExternalId(ctx, externalId)
	if err != nil {
		zap.L().Error("Failed to check gateway invoice", zap.String("external_id", externalId), zap.Error(err))
		return "", err
	}

	if remote.Status.IsPaid() {
		credited, err := s.store.MarkInvoicePaid(ctx, externalId, local.Amount)
		if err != nil {
			return "", err
		}
		if credited {
			zap.L().Info("Saldo credited from invoice check",
				zap.String("external_id", externalId),
				zap.String("user_id", local.UserId),
				zap.String("amount", local.Amount.String()))
		}
		return remote.Status, nil
	}

	if err := s.store.UpdateInvoiceStatus(ctx, externalId, remote.Status); err != nil {
		return "", err
	}
	return remote.Status, nil
}

// ProcessInvoiceCallback applies a gateway webhook. Only PAID top-up invoices
// change state; everything else is acknowledged and ignored.
func (s *LedgerService) ProcessInvoiceCallback(ctx context.Context, callback models.InvoiceCallback) (bool, error) {
	zap.L().Info("Processing invoice callback",
		zap.String("external_id", callback.ExternalId),
		zap.String("status", callback.Status),
		zap.String("amount", callback.PaidOrAmount().String()))

	if models.InvoiceStatus(callback.Status) != models.InvoicePaid {
		return false, nil
	}
	if !strings.HasPrefix(callback.ExternalId, topUpPrefix) {
		zap.L().Info("Ignoring non top-up invoice", zap.String("external_id", callback.ExternalId))
		return false, nil
	}

	amount := callback.PaidOrAmount()
	if !amount.IsPositive() {
		zap.L().Warn("Paid callback without amount", zap.String("external_id", callback.ExternalId))
		return false, nil
	}

	credited, err := s.store.MarkInvoicePaid(ctx, callback.ExternalId, amount)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("Callback for unknown invoice", zap.String("external_id", callback.ExternalId))
			return false, nil
		}
		zap.L().Error("Invoice callback processing failed",
			zap.String("external_id", callback.ExternalId),
			zap.Error(err))
		return false, err
	}
	return credited, nil
}
