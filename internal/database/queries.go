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

// activeReturnStatuses must list models.ActiveReturnStatuses.
const activeReturnStatuses = `('pending', 'awaitingSellerResponse', 'approved', 'sellerResponded')`

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, saldo_minor, fcm_token, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, saldo_minor, fcm_token, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, saldo_minor, fcm_token, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	queryIncrementSaldo = `
		UPDATE users
		SET saldo_minor = saldo_minor + ?, updated_at = ?
		WHERE id = ?`

	// Transaction queries
	transactionColumns = `
		id, buyer_id, seller_id, amount_minor, escrow_amount_minor, is_escrow, status,
		delivered_at, completed_at, refunded_at, release_to_seller_at,
		auto_completed, auto_completed_at, rating, refund_amount_minor, refund_reason, created_at`

	queryInsertTransaction = `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	querySettlementCandidates = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'delivered'
		  AND completed_at IS NULL
		  AND delivered_at IS NOT NULL
		  AND delivered_at <= ?
		  AND (delivered_at > ? OR (delivered_at = ? AND id > ?))
		ORDER BY delivered_at, id
		LIMIT ?`

	queryCompleteTransaction = `
		UPDATE transactions
		SET status = 'completed', completed_at = ?, release_to_seller_at = ?,
		    auto_completed = 1, auto_completed_at = ?, rating = NULL
		WHERE id = ? AND status = ? AND completed_at IS NULL`

	queryCompleteUndisputedTransaction = queryCompleteTransaction + `
		  AND NOT EXISTS (
			SELECT 1 FROM return_requests r
			WHERE r.transaction_id = transactions.id
			  AND r.status IN ` + activeReturnStatuses + `)`

	queryRefundTransaction = `
		UPDATE transactions
		SET status = 'refunded', completed_at = ?, refunded_at = ?, rating = NULL,
		    refund_amount_minor = ?, refund_reason = ?
		WHERE id = ? AND status = ? AND status != 'refunded' AND refunded_at IS NULL`

	// Return request queries
	returnRequestColumns = `
		id, transaction_id, buyer_id, seller_id, reason, response_reason, status, created_at, responded_at`

	queryInsertReturnRequest = `
		INSERT INTO return_requests (` + returnRequestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetReturnRequest = `
		SELECT ` + returnRequestColumns + `
		FROM return_requests
		WHERE id = ?`

	queryActiveReturnsForTransaction = `
		SELECT ` + returnRequestColumns + `
		FROM return_requests
		WHERE transaction_id = ? AND status IN ` + activeReturnStatuses

	queryExpiredReturnRequests = `
		SELECT ` + returnRequestColumns + `
		FROM return_requests
		WHERE status = 'awaitingSellerResponse' AND created_at <= ?
		  AND (created_at > ? OR (created_at = ? AND id > ?))
		ORDER BY created_at, id
		LIMIT ?`

	queryResolveReturnRequest = `
		UPDATE return_requests
		SET status = ?, responded_at = ?, response_reason = ?
		WHERE id = ? AND status = ?`

	// Refund log queries
	queryInsertRefundLog = `
		INSERT INTO refund_logs (
			id, transaction_id, return_request_id, buyer_id, seller_id,
			refund_amount_minor, original_amount_minor, escrow_amount_minor,
			reason, buyer_reason, seller_response, processed_at, processed_by, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetRefundLogs = `
		SELECT id, transaction_id, return_request_id, buyer_id, seller_id,
		       refund_amount_minor, original_amount_minor, escrow_amount_minor,
		       reason, buyer_reason, seller_response, processed_at, processed_by, type
		FROM refund_logs
		WHERE transaction_id = ?
		ORDER BY processed_at`

	// Job error queries
	queryInsertJobError = `
		INSERT INTO auto_return_errors (id, request_id, transaction_id, error, timestamp, retryable)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetJobErrors = `
		SELECT id, request_id, transaction_id, error, timestamp, retryable
		FROM auto_return_errors
		ORDER BY timestamp DESC
		LIMIT ?`

	// Invoice queries
	invoiceColumns = `
		external_id, user_id, amount_minor, status, gateway_invoice_id,
		created_at, updated_at, paid_at, paid_amount_minor`

	queryInsertInvoice = `
		INSERT INTO invoices (external_id, user_id, amount_minor, status, gateway_invoice_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetInvoice = `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE external_id = ?`

	queryUpdateInvoiceStatus = `
		UPDATE invoices
		SET status = ?, updated_at = ?
		WHERE external_id = ? AND status NOT IN ('PAID', 'SETTLED')`

	queryMarkInvoicePaid = `
		UPDATE invoices
		SET status = 'PAID', paid_at = ?, paid_amount_minor = ?, updated_at = ?
		WHERE external_id = ? AND status NOT IN ('PAID', 'SETTLED')
		RETURNING user_id`

	queryGetInvoiceOwner = `
		SELECT user_id FROM invoices WHERE external_id = ?`

	// Cart queries
	queryInsertCartItem = `
		INSERT INTO cart_items (id, user_id, product_id, quantity, deadline)
		VALUES (?, ?, ?, ?, ?)`

	queryDeleteExpiredCartItems = `
		DELETE FROM cart_items WHERE deadline < ?`

	// Notification queries
	queryInsertNotification = `
		INSERT INTO notifications (id, user_id, title, body, image_url, type, sender_id, sender_name, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`

	queryListNotifications = `
		SELECT id, user_id, title, body, image_url, type, sender_id, sender_name, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`

	querySetFcmToken = `
		UPDATE users SET fcm_token = ?, updated_at = ? WHERE id = ?`
)
