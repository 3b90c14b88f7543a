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

	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/notify"
	"jastip-settlement-go/internal/store"
	"jastip-settlement-go/internal/xendit"

	"go.uber.org/zap"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrGatewayDisabled = errors.New("payment gateway not configured")
	ErrNoRecipients    = errors.New("no push recipients found")
)

// InvoiceGateway is the payment gateway used for saldo top-ups
type InvoiceGateway interface {
	CreateInvoice(ctx context.Context, params xendit.CreateInvoiceParams) (*xendit.Invoice, error)
	GetInvoiceByExternalId(ctx context.Context, externalId string) (*xendit.Invoice, error)
}

// JobRunner triggers reconciliation jobs by name
type JobRunner interface {
	Trigger(ctx context.Context, name string) (models.JobSummary, error)
}

// LedgerService provides minimal API
type LedgerService struct {
	store    store.LedgerStore
	gateway  InvoiceGateway
	jobs     JobRunner
	notifier notify.Notifier
}

// NewLedgerService wires the store and scheduler. gateway may be nil, in
// which case the top-up operations fail with ErrGatewayDisabled. A nil
// notifier logs pushes instead of delivering them.
func NewLedgerService(s store.LedgerStore, gateway InvoiceGateway, jobs JobRunner, notifier notify.Notifier) *LedgerService {
	if notifier == nil {
		notifier = notify.NewLogNotifier(zap.L())
	}
	return &LedgerService{
		store:    s,
		gateway:  gateway,
		jobs:     jobs,
		notifier: notifier,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// RunJob triggers a registered job and waits for its summary.
func (s *LedgerService) RunJob(ctx context.Context, name string) (models.JobSummary, error) {
	return s.jobs.Trigger(ctx, name)
}
