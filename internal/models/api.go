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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobSummary is the outcome of one reconciliation run
type JobSummary struct {
	Job            string    `json:"job"`
	CompletedCount int       `json:"completedCount"`
	SkippedCount   int       `json:"skippedCount"`
	ErrorCount     int       `json:"errorCount"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// UserBalance is the saldo view returned by the API
type UserBalance struct {
	UserId string          `json:"userId"`
	Saldo  decimal.Decimal `json:"saldo"`
}

// CreateInvoiceRequest is the body of POST /create-invoice
type CreateInvoiceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	UserId string          `json:"userId"`
	Email  string          `json:"email"`
}

// CreateInvoiceResponse is returned once the gateway invoice exists
type CreateInvoiceResponse struct {
	InvoiceUrl string `json:"invoiceUrl"`
	ExternalId string `json:"externalId"`
}

// InvoiceCallback is the subset of the gateway webhook payload we consume
type InvoiceCallback struct {
	Id         string           `json:"id"`
	ExternalId string           `json:"external_id"`
	Status     string           `json:"status"`
	Amount     decimal.Decimal  `json:"amount"`
	PaidAmount *decimal.Decimal `json:"paid_amount,omitempty"`
}

// PaidOrAmount prefers the amount actually paid over the invoiced amount
func (c InvoiceCallback) PaidOrAmount() decimal.Decimal {
	if c.PaidAmount != nil && c.PaidAmount.IsPositive() {
		return *c.PaidAmount
	}
	return c.Amount
}

// AnnouncementRequest is the body of POST /send-announcement
type AnnouncementRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageUrl string `json:"imageUrl"`
	SenderId string `json:"senderId"`
}

// AnnouncementResult reports push delivery for a broadcast
type AnnouncementResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	SentTo          int    `json:"sentTo"`
	TotalRecipients int    `json:"totalRecipients"`
	FailedCount     int    `json:"failedCount"`
}

// SendNotificationRequest is the body of POST /sendNotification
type SendNotificationRequest struct {
	RecipientId string `json:"recipientId"`
	SenderName  string `json:"senderName"`
	MessageText string `json:"messageText"`
}
