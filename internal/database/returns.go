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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanReturnRequest(row rowScanner) (*models.ReturnRequest, error) {
	var rr models.ReturnRequest
	var status string
	var createdAt int64
	var respondedAt sql.NullInt64

	err := row.Scan(&rr.Id, &rr.TransactionId, &rr.BuyerId, &rr.SellerId, &rr.Reason, &rr.ResponseReason,
		&status, &createdAt, &respondedAt)
	if err != nil {
		return nil, err
	}

	rr.Status, err = models.ParseReturnStatus(status)
	if err != nil {
		return nil, fmt.Errorf("return request %s: %w", rr.Id, err)
	}
	rr.CreatedAt = fromMillis(createdAt)
	rr.RespondedAt = fromNullMillis(respondedAt)
	return &rr, nil
}

func (s *Service) queryReturnRequests(ctx context.Context, query string, args ...any) ([]models.ReturnRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var requests []models.ReturnRequest
	for rows.Next() {
		rr, err := scanReturnRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan return request row: %w", err)
		}
		requests = append(requests, *rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating return request rows: %w", err)
	}
	return requests, nil
}

// InsertReturnRequest stores a dispute opened by a buyer.
func (s *Service) InsertReturnRequest(ctx context.Context, rr models.ReturnRequest) error {
	if _, err := models.ParseReturnStatus(string(rr.Status)); err != nil {
		return err
	}
	createdAt := rr.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, queryInsertReturnRequest,
		rr.Id, rr.TransactionId, rr.BuyerId, rr.SellerId, rr.Reason, rr.ResponseReason,
		string(rr.Status), toMillis(createdAt), nullMillis(rr.RespondedAt))
	if err != nil {
		return fmt.Errorf("unable to insert return request %s: %w", rr.Id, err)
	}
	return nil
}

func (s *Service) GetReturnRequest(ctx context.Context, id string) (*models.ReturnRequest, error) {
	rr, err := scanReturnRequest(s.db.QueryRowContext(ctx, queryGetReturnRequest, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: return request %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("unable to query return request %s: %w", id, err)
	}
	return rr, nil
}

// ListActiveReturns returns the non-final return requests that block settlement.
func (s *Service) ListActiveReturns(ctx context.Context, transactionId string) ([]models.ReturnRequest, error) {
	requests, err := s.queryReturnRequests(ctx, queryActiveReturnsForTransaction, transactionId)
	if err != nil {
		return nil, fmt.Errorf("unable to query active returns for %s: %w", transactionId, err)
	}
	return requests, nil
}

// ListExpiredReturnRequests returns requests still awaiting the seller that
// were opened at or before createdBefore, ordered by (created_at, id) and
// starting after the cursor.
func (s *Service) ListExpiredReturnRequests(ctx context.Context, createdBefore time.Time, after store.Cursor, limit int) ([]models.ReturnRequest, error) {
	zap.L().Debug("Querying expired return requests",
		zap.Time("created_before", createdBefore),
		zap.String("after_id", after.Id),
		zap.Int("limit", limit))

	afterMs := cursorMillis(after)
	requests, err := s.queryReturnRequests(ctx, queryExpiredReturnRequests,
		toMillis(createdBefore), afterMs, afterMs, after.Id, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query expired return requests: %w", err)
	}
	return requests, nil
}

func (s *Service) ListRefundLogs(ctx context.Context, transactionId string) ([]models.RefundLog, error) {
	rows, err := s.db.QueryContext(ctx, queryGetRefundLogs, transactionId)
	if err != nil {
		return nil, fmt.Errorf("unable to query refund logs: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var logs []models.RefundLog
	for rows.Next() {
		var l models.RefundLog
		var refundAmount, originalAmount, escrowAmount, processedAt int64
		err := rows.Scan(&l.Id, &l.TransactionId, &l.ReturnRequestId, &l.BuyerId, &l.SellerId,
			&refundAmount, &originalAmount, &escrowAmount,
			&l.Reason, &l.BuyerReason, &l.SellerResponse, &processedAt, &l.ProcessedBy, &l.Type)
		if err != nil {
			return nil, fmt.Errorf("unable to scan refund log row: %w", err)
		}
		l.RefundAmount = fromMinor(refundAmount)
		l.OriginalAmount = fromMinor(originalAmount)
		l.EscrowAmount = fromMinor(escrowAmount)
		l.ProcessedAt = fromMillis(processedAt)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refund log rows: %w", err)
	}
	return logs, nil
}

// RecordJobError appends a retryable failure record for a candidate.
func (s *Service) RecordJobError(ctx context.Context, jobErr models.JobError) error {
	if jobErr.Id == "" {
		jobErr.Id = uuid.New().String()
	}
	ts := jobErr.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx, queryInsertJobError,
		jobErr.Id, jobErr.RequestId, jobErr.TransactionId, jobErr.Error, toMillis(ts), jobErr.Retryable)
	if err != nil {
		return fmt.Errorf("unable to record job error for %s: %w", jobErr.RequestId, err)
	}
	return nil
}

func (s *Service) ListJobErrors(ctx context.Context, limit int) ([]models.JobError, error) {
	rows, err := s.db.QueryContext(ctx, queryGetJobErrors, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query job errors: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var jobErrors []models.JobError
	for rows.Next() {
		var je models.JobError
		var ts int64
		if err := rows.Scan(&je.Id, &je.RequestId, &je.TransactionId, &je.Error, &ts, &je.Retryable); err != nil {
			return nil, fmt.Errorf("unable to scan job error row: %w", err)
		}
		je.Timestamp = fromMillis(ts)
		jobErrors = append(jobErrors, je)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job error rows: %w", err)
	}
	return jobErrors, nil
}
