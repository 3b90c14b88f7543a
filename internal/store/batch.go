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

package store

import (
	"fmt"

	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

// Op is a single document mutation inside a Batch. Backends type-switch on
// the concrete op; the set is closed to this package.
type Op interface {
	isOp()
}

// CompleteTransactionOp settles a delivered transaction. Server timestamps
// (completedAt, releaseToSellerAt, autoCompletedAt) are assigned at commit.
type CompleteTransactionOp struct {
	TransactionId string
	From          models.TransactionStatus
	// RequireNoActiveReturn makes the backend re-check for active disputes
	// inside the same atomic unit when it can.
	RequireNoActiveReturn bool
}

// RefundTransactionOp moves a transaction to refunded.
type RefundTransactionOp struct {
	TransactionId string
	From          models.TransactionStatus
	RefundAmount  decimal.Decimal
	RefundReason  string
}

// ResolveReturnOp moves a return request to a final status.
type ResolveReturnOp struct {
	ReturnRequestId string
	From            models.ReturnStatus
	To              models.ReturnStatus
	ResponseReason  string
}

// IncrementSaldoOp atomically adds Amount to a user's saldo.
type IncrementSaldoOp struct {
	UserId string
	Amount decimal.Decimal
}

// AppendRefundLogOp inserts one refund audit record. ProcessedAt is assigned at commit.
type AppendRefundLogOp struct {
	Log models.RefundLog
}

func (CompleteTransactionOp) isOp() {}
func (RefundTransactionOp) isOp()   {}
func (ResolveReturnOp) isOp()       {}
func (IncrementSaldoOp) isOp()      {}
func (AppendRefundLogOp) isOp()     {}

// Batch collects mutations that must commit together or not at all.
// Builders validate status transitions before anything is queued.
type Batch struct {
	ops []Op
}

func NewBatch() *Batch {
	return &Batch{}
}

// Ops returns the queued mutations in insertion order.
func (b *Batch) Ops() []Op {
	return b.ops
}

func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) CompleteTransaction(tx models.Transaction) error {
	if !tx.Status.CanTransitionTo(models.TransactionCompleted) {
		return fmt.Errorf("%w: transaction %s %s -> %s", ErrInvalidTransition, tx.Id, tx.Status, models.TransactionCompleted)
	}
	b.ops = append(b.ops, CompleteTransactionOp{
		TransactionId:         tx.Id,
		From:                  tx.Status,
		RequireNoActiveReturn: true,
	})
	return nil
}

func (b *Batch) RefundTransaction(tx models.Transaction, reason string) error {
	if !tx.Status.CanTransitionTo(models.TransactionRefunded) {
		return fmt.Errorf("%w: transaction %s %s -> %s", ErrInvalidTransition, tx.Id, tx.Status, models.TransactionRefunded)
	}
	b.ops = append(b.ops, RefundTransactionOp{
		TransactionId: tx.Id,
		From:          tx.Status,
		RefundAmount:  tx.Amount,
		RefundReason:  reason,
	})
	return nil
}

func (b *Batch) ResolveReturn(rr models.ReturnRequest, to models.ReturnStatus, responseReason string) error {
	if !rr.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: return request %s %s -> %s", ErrInvalidTransition, rr.Id, rr.Status, to)
	}
	b.ops = append(b.ops, ResolveReturnOp{
		ReturnRequestId: rr.Id,
		From:            rr.Status,
		To:              to,
		ResponseReason:  responseReason,
	})
	return nil
}

// IncrementSaldo queues a balance credit; non-positive amounts are ignored.
func (b *Batch) IncrementSaldo(userId string, amount decimal.Decimal) bool {
	if userId == "" || !amount.IsPositive() {
		return false
	}
	b.ops = append(b.ops, IncrementSaldoOp{UserId: userId, Amount: amount})
	return true
}

func (b *Batch) AppendRefundLog(log models.RefundLog) {
	b.ops = append(b.ops, AppendRefundLogOp{Log: log})
}
