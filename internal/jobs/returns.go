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

package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jastip-settlement-go/internal/audit"
	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"

	"go.uber.org/zap"
)

const JobAutoApproveReturns = "auto-approve-returns"

const (
	TimeoutResponseReason = "Seller did not respond within the timeout window"
	TimeoutRefundReason   = "Return auto-approved: seller did not respond within the timeout window"

	refundProcessedBy = "cron"
	refundLogType     = "return_refund"
)

// ReturnTimeoutJobConfig contains configuration for ReturnTimeoutJob
type ReturnTimeoutJobConfig struct {
	Store         store.ReturnStore
	Sink          audit.Sink
	TimeoutWindow time.Duration
	PageSize      int
}

// ReturnTimeoutJob resolves return requests the seller left unanswered past
// the timeout window in the buyer's favour and refunds the purchase.
type ReturnTimeoutJob struct {
	store         store.ReturnStore
	sink          audit.Sink
	timeoutWindow time.Duration
	pageSize      int
}

func NewReturnTimeoutJob(cfg ReturnTimeoutJobConfig) *ReturnTimeoutJob {
	sink := cfg.Sink
	if sink == nil {
		sink = audit.Multi{}
	}
	return &ReturnTimeoutJob{
		store:         cfg.Store,
		sink:          sink,
		timeoutWindow: cfg.TimeoutWindow,
		pageSize:      pageSizeOrDefault(cfg.PageSize),
	}
}

func (j *ReturnTimeoutJob) Name() string {
	return JobAutoApproveReturns
}

func (j *ReturnTimeoutJob) Run(ctx context.Context) (models.JobSummary, error) {
	summary := models.JobSummary{Job: j.Name()}

	now, err := j.store.Now(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read server time: %w", err)
	}
	summary.StartedAt = now

	cutoff := now.Add(-j.timeoutWindow)
	var cursor store.Cursor
	for {
		requests, err := j.store.ListExpiredReturnRequests(ctx, cutoff, cursor, j.pageSize)
		if err != nil {
			zap.L().Error("Failed to query expired return requests", zap.Error(err))
			return summary, fmt.Errorf("failed to query expired return requests: %w", err)
		}

		zap.L().Info("Processing expired return requests",
			zap.Int("count", len(requests)),
			zap.String("after_id", cursor.Id),
			zap.Time("created_before", cutoff))

		for _, rr := range requests {
			result, err := j.resolve(ctx, rr)
			switch result {
			case outcomeCompleted:
				summary.CompletedCount++
			case outcomeSkipped:
				summary.SkippedCount++
			case outcomeFailed:
				summary.ErrorCount++
				zap.L().Error("Failed to auto-approve return request",
					zap.String("return_request_id", rr.Id),
					zap.String("transaction_id", rr.TransactionId),
					zap.Error(err))
				j.recordFailure(ctx, rr, err)
			}
		}

		if len(requests) < j.pageSize {
			break
		}
		last := requests[len(requests)-1]
		cursor = store.Cursor{At: last.CreatedAt, Id: last.Id}
	}

	summary.FinishedAt = finishedAt(ctx, j.store, now)
	return summary, nil
}

func (j *ReturnTimeoutJob) resolve(ctx context.Context, rr models.ReturnRequest) (outcome, error) {
	tx, err := j.store.GetTransaction(ctx, rr.TransactionId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("Return request references missing transaction",
				zap.String("return_request_id", rr.Id),
				zap.String("transaction_id", rr.TransactionId))
			return outcomeSkipped, nil
		}
		return outcomeFailed, fmt.Errorf("failed to load transaction: %w", err)
	}

	if tx.Status == models.TransactionRefunded || tx.RefundedAt != nil || rr.Status.IsFinal() {
		zap.L().Debug("Return request already resolved",
			zap.String("return_request_id", rr.Id),
			zap.String("return_status", string(rr.Status)),
			zap.String("transaction_status", string(tx.Status)))
		return outcomeSkipped, nil
	}

	batch := store.NewBatch()
	if err := batch.ResolveReturn(rr, models.ReturnFinalApproved, TimeoutResponseReason); err != nil {
		zap.L().Warn("Refusing illegal transition", zap.String("return_request_id", rr.Id), zap.Error(err))
		return outcomeSkipped, nil
	}
	if err := batch.RefundTransaction(*tx, TimeoutRefundReason); err != nil {
		zap.L().Warn("Refusing illegal transition", zap.String("transaction_id", tx.Id), zap.Error(err))
		return outcomeSkipped, nil
	}

	credited := batch.IncrementSaldo(tx.BuyerId, tx.Amount)

	escrowAmount := tx.EscrowAmount
	if !escrowAmount.IsPositive() {
		escrowAmount = tx.Amount
	}
	batch.AppendRefundLog(models.RefundLog{
		TransactionId:   tx.Id,
		ReturnRequestId: rr.Id,
		BuyerId:         tx.BuyerId,
		SellerId:        tx.SellerId,
		RefundAmount:    tx.Amount,
		OriginalAmount:  tx.Amount,
		EscrowAmount:    escrowAmount,
		Reason:          TimeoutRefundReason,
		BuyerReason:     rr.Reason,
		SellerResponse:  rr.ResponseReason,
		ProcessedBy:     refundProcessedBy,
		Type:            refundLogType,
	})

	refundedAt, err := j.store.CommitBatch(ctx, batch)
	if err != nil {
		if errors.Is(err, store.ErrConcurrentModification) || errors.Is(err, store.ErrDuplicateRefundLog) {
			zap.L().Info("Return request changed before commit, skipping",
				zap.String("return_request_id", rr.Id),
				zap.Error(err))
			return outcomeSkipped, nil
		}
		return outcomeFailed, fmt.Errorf("failed to commit refund: %w", err)
	}

	zap.L().Info("Return request auto-approved",
		zap.String("return_request_id", rr.Id),
		zap.String("transaction_id", tx.Id),
		zap.String("buyer_id", tx.BuyerId),
		zap.Bool("credited", credited),
		zap.String("refund_amount", tx.Amount.String()))

	j.sink.ReturnRefunded(ctx, audit.RefundEvent{
		TransactionId:   tx.Id,
		ReturnRequestId: rr.Id,
		BuyerId:         tx.BuyerId,
		SellerId:        tx.SellerId,
		RefundAmount:    tx.Amount,
		Credited:        credited,
		RefundedAt:      refundedAt,
	})
	return outcomeCompleted, nil
}

// recordFailure keeps a retryable trace of the failed candidate. Failing to
// write it is logged and otherwise ignored.
func (j *ReturnTimeoutJob) recordFailure(ctx context.Context, rr models.ReturnRequest, cause error) {
	err := j.store.RecordJobError(ctx, models.JobError{
		RequestId:     rr.Id,
		TransactionId: rr.TransactionId,
		Error:         cause.Error(),
		Retryable:     true,
	})
	if err != nil {
		zap.L().Warn("Failed to record job error",
			zap.String("return_request_id", rr.Id),
			zap.Error(err))
	}
}
