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

import "fmt"

// TransactionStatus is the lifecycle state of a purchase
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionPaid       TransactionStatus = "paid"
	TransactionProcessing TransactionStatus = "processing"
	TransactionShipped    TransactionStatus = "shipped"
	TransactionDelivered  TransactionStatus = "delivered"
	TransactionCompleted  TransactionStatus = "completed"
	TransactionRefunded   TransactionStatus = "refunded"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:    {TransactionPaid},
	TransactionPaid:       {TransactionProcessing, TransactionShipped, TransactionRefunded},
	TransactionProcessing: {TransactionShipped, TransactionRefunded},
	TransactionShipped:    {TransactionDelivered, TransactionRefunded},
	TransactionDelivered:  {TransactionCompleted, TransactionRefunded},
}

// ParseTransactionStatus rejects values outside the closed set
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case TransactionPending, TransactionPaid, TransactionProcessing, TransactionShipped,
		TransactionDelivered, TransactionCompleted, TransactionRefunded:
		return st, nil
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// CanTransitionTo reports whether the lifecycle allows moving to next
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionRefunded
}

// ReturnStatus is the lifecycle state of a buyer dispute
type ReturnStatus string

const (
	ReturnPending                ReturnStatus = "pending"
	ReturnAwaitingSellerResponse ReturnStatus = "awaitingSellerResponse"
	ReturnSellerResponded        ReturnStatus = "sellerResponded"
	ReturnApproved               ReturnStatus = "approved"
	ReturnFinalApproved          ReturnStatus = "finalApproved"
	ReturnFinalRejected          ReturnStatus = "finalRejected"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnPending:                {ReturnAwaitingSellerResponse, ReturnFinalRejected},
	ReturnAwaitingSellerResponse: {ReturnSellerResponded, ReturnFinalApproved},
	ReturnSellerResponded:        {ReturnApproved, ReturnFinalApproved, ReturnFinalRejected},
	ReturnApproved:               {ReturnFinalApproved, ReturnFinalRejected},
}

// ActiveReturnStatuses block automatic settlement of the disputed transaction.
var ActiveReturnStatuses = []ReturnStatus{
	ReturnPending,
	ReturnAwaitingSellerResponse,
	ReturnApproved,
	ReturnSellerResponded,
}

// ParseReturnStatus rejects values outside the closed set
func ParseReturnStatus(s string) (ReturnStatus, error) {
	switch st := ReturnStatus(s); st {
	case ReturnPending, ReturnAwaitingSellerResponse, ReturnSellerResponded,
		ReturnApproved, ReturnFinalApproved, ReturnFinalRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown return status %q", s)
}

// CanTransitionTo reports whether the dispute lifecycle allows moving to next
func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	for _, allowed := range returnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsFinal reports whether the dispute has been decided
func (s ReturnStatus) IsFinal() bool {
	return s == ReturnFinalApproved || s == ReturnFinalRejected
}

// InvoiceStatus mirrors the payment gateway invoice states we care about
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceSettled InvoiceStatus = "SETTLED"
	InvoiceExpired InvoiceStatus = "EXPIRED"
)

// IsPaid treats SETTLED as paid; the gateway moves PAID invoices to SETTLED later.
func (s InvoiceStatus) IsPaid() bool {
	return s == InvoicePaid || s == InvoiceSettled
}

// NotificationType tells the client how to render an inbox entry
type NotificationType string

const (
	NotificationAnnouncement NotificationType = "announcement"
	NotificationChat         NotificationType = "chat"
)
