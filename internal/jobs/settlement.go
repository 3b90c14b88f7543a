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

const JobAutoCompleteTransactions = "auto-complete-transactions"

// defaultPageSize applies when a job is configured without a positive page size.
const defaultPageSize = 200

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeSkipped
	outcomeFailed
)

// SettlementJobConfig contains configuration for SettlementJob
type SettlementJobConfig struct {
	Store       store.SettlementStore
	Sink        audit.Sink
	GracePeriod time.Duration
	PageSize    int
}

// SettlementJob completes delivered transactions once the grace period has
// passed without a dispute, releasing escrow to the seller.
type SettlementJob struct {
	store       store.SettlementStore
	sink        audit.Sink
	gracePeriod time.Duration
	pageSize    int
}

func NewSettlementJob(cfg SettlementJobConfig) *SettlementJob {
	sink := cfg.Sink
	if sink == nil {
		sink = audit.Multi{}
	}
	return &SettlementJob{
		store:       cfg.Store,
		sink:        sink,
		gracePeriod: cfg.GracePeriod,
		pageSize:    pageSizeOrDefault(cfg.PageSize),
	}
}

func pageSizeOrDefault(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	return n
}

func (j *SettlementJob) Name() string {
	return JobAutoCompleteTransactions
}

// Run makes a single pass over the current candidates, paging by keyset so
// rows skipped on earlier pages never hide later ones. Only a failure to read
// a candidate page aborts the run.
func (j *SettlementJob) Run(ctx context.Context) (models.JobSummary, error) {
	summary := models.JobSummary{Job: j.Name()}

	now, err := j.store.Now(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read server time: %w", err)
	}
	summary.StartedAt = now

	cutoff := now.Add(-j.gracePeriod)
	var cursor store.Cursor
	for {
		candidates, err := j.store.ListSettlementCandidates(ctx, cutoff, cursor, j.pageSize)
		if err != nil {
			zap.L().Error("Failed to query settlement candidates", zap.Error(err))
			return summary, fmt.Errorf("failed to query settlement candidates: %w", err)
		}

		zap.L().Info("Processing settlement candidates",
			zap.Int("count", len(candidates)),
			zap.String("after_id", cursor.Id),
			zap.Time("delivered_before", cutoff))

		for _, tx := range candidates {
			result, err := j.settle(ctx, tx)
			switch result {
			case outcomeCompleted:
				summary.CompletedCount++
			case outcomeSkipped:
				summary.SkippedCount++
			case outcomeFailed:
				summary.ErrorCount++
				zap.L().Error("Failed to auto-complete transaction",
					zap.String("transaction_id", tx.Id),
					zap.Error(err))
			}
		}

		if len(candidates) < j.pageSize {
			break
		}
		last := candidates[len(candidates)-1]
		cursor = store.Cursor{Id: last.Id}
		if last.DeliveredAt != nil {
			cursor.At = *last.DeliveredAt
		}
	}

	summary.FinishedAt = finishedAt(ctx, j.store, now)
	return summary, nil
}

func (j *SettlementJob) settle(ctx context.Context, tx models.Transaction) (outcome, error) {
	active, err := j.store.ListActiveReturns(ctx, tx.Id)
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to check active returns: %w", err)
	}
	if len(active) > 0 {
		zap.L().Info("Skipping disputed transaction",
			zap.String("transaction_id", tx.Id),
			zap.String("return_request_id", active[0].Id),
			zap.String("return_status", string(active[0].Status)))
		return outcomeSkipped, nil
	}

	batch := store.NewBatch()
	if err := batch.CompleteTransaction(tx); err != nil {
		zap.L().Warn("Refusing illegal transition", zap.String("transaction_id", tx.Id), zap.Error(err))
		return outcomeSkipped, nil
	}

	disbursed := false
	if tx.IsEscrow {
		disbursed = batch.IncrementSaldo(tx.SellerId, tx.EscrowAmount)
	}

	completedAt, err := j.store.CommitBatch(ctx, batch)
	if err != nil {
		if errors.Is(err, store.ErrConcurrentModification) {
			zap.L().Info("Transaction changed before commit, skipping",
				zap.String("transaction_id", tx.Id),
				zap.Error(err))
			return outcomeSkipped, nil
		}
		return outcomeFailed, fmt.Errorf("failed to commit settlement: %w", err)
	}

	zap.L().Info("Transaction auto-completed",
		zap.String("transaction_id", tx.Id),
		zap.String("seller_id", tx.SellerId),
		zap.Bool("disbursed", disbursed),
		zap.String("escrow_amount", tx.EscrowAmount.String()))

	j.sink.SettlementCompleted(ctx, audit.SettlementEvent{
		TransactionId: tx.Id,
		SellerId:      tx.SellerId,
		EscrowAmount:  tx.EscrowAmount,
		Disbursed:     disbursed,
		CompletedAt:   completedAt,
	})
	return outcomeCompleted, nil
}

type clock interface {
	Now(ctx context.Context) (time.Time, error)
}

// finishedAt reads server time again, falling back to the run start.
func finishedAt(ctx context.Context, c clock, startedAt time.Time) time.Time {
	now, err := c.Now(ctx)
	if err != nil {
		zap.L().Warn("Failed to read server time at run end", zap.Error(err))
		return startedAt
	}
	return now
}
