package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a marketplace user; Saldo is only ever changed by increment
type User struct {
	Id        string          `db:"id"`
	Name      string          `db:"name"`
	Email     string          `db:"email"`
	Saldo     decimal.Decimal `db:"saldo_minor"`
	FcmToken  string          `db:"fcm_token"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Transaction is a purchase agreement between a buyer and a seller
type Transaction struct {
	Id                string            `db:"id"`
	BuyerId           string            `db:"buyer_id"`
	SellerId          string            `db:"seller_id"`
	Amount            decimal.Decimal   `db:"amount_minor"`
	EscrowAmount      decimal.Decimal   `db:"escrow_amount_minor"`
	IsEscrow          bool              `db:"is_escrow"`
	Status            TransactionStatus `db:"status"`
	DeliveredAt       *time.Time        `db:"delivered_at"`
	CompletedAt       *time.Time        `db:"completed_at"`
	RefundedAt        *time.Time        `db:"refunded_at"`
	ReleaseToSellerAt *time.Time        `db:"release_to_seller_at"`
	AutoCompleted     bool              `db:"auto_completed"`
	AutoCompletedAt   *time.Time        `db:"auto_completed_at"`
	Rating            *int              `db:"rating"`
	RefundAmount      *decimal.Decimal  `db:"refund_amount_minor"`
	RefundReason      string            `db:"refund_reason"`
	CreatedAt         time.Time         `db:"created_at"`
}

// ReturnRequest is a buyer-initiated dispute against a Transaction
type ReturnRequest struct {
	Id             string       `db:"id"`
	TransactionId  string       `db:"transaction_id"`
	BuyerId        string       `db:"buyer_id"`
	SellerId       string       `db:"seller_id"`
	Reason         string       `db:"reason"`
	ResponseReason string       `db:"response_reason"`
	Status         ReturnStatus `db:"status"`
	CreatedAt      time.Time    `db:"created_at"`
	RespondedAt    *time.Time   `db:"responded_at"`
}

// RefundLog is the append-only audit record of one automated refund
type RefundLog struct {
	Id              string          `db:"id"`
	TransactionId   string          `db:"transaction_id"`
	ReturnRequestId string          `db:"return_request_id"`
	BuyerId         string          `db:"buyer_id"`
	SellerId        string          `db:"seller_id"`
	RefundAmount    decimal.Decimal `db:"refund_amount_minor"`
	OriginalAmount  decimal.Decimal `db:"original_amount_minor"`
	EscrowAmount    decimal.Decimal `db:"escrow_amount_minor"`
	Reason          string          `db:"reason"`
	BuyerReason     string          `db:"buyer_reason"`
	SellerResponse  string          `db:"seller_response"`
	ProcessedAt     time.Time       `db:"processed_at"`
	ProcessedBy     string          `db:"processed_by"`
	Type            string          `db:"type"`
}

// JobError records a candidate that failed inside an automated run
type JobError struct {
	Id            string    `db:"id"`
	RequestId     string    `db:"request_id"`
	TransactionId string    `db:"transaction_id"`
	Error         string    `db:"error"`
	Timestamp     time.Time `db:"timestamp"`
	Retryable     bool      `db:"retryable"`
}

// Invoice is a saldo top-up created against the payment gateway
type Invoice struct {
	ExternalId       string           `db:"external_id"`
	UserId           string           `db:"user_id"`
	Amount           decimal.Decimal  `db:"amount_minor"`
	Status           InvoiceStatus    `db:"status"`
	GatewayInvoiceId string           `db:"gateway_invoice_id"`
	CreatedAt        time.Time        `db:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"`
	PaidAt           *time.Time       `db:"paid_at"`
	PaidAmount       *decimal.Decimal `db:"paid_amount_minor"`
}

// CartItem is a reserved item in a user's cart that expires at Deadline
type CartItem struct {
	Id        string    `db:"id"`
	UserId    string    `db:"user_id"`
	ProductId string    `db:"product_id"`
	Quantity  int       `db:"quantity"`
	Deadline  time.Time `db:"deadline"`
}

// Notification is one entry in a user's in-app inbox
type Notification struct {
	Id         string           `db:"id" json:"id"`
	UserId     string           `db:"user_id" json:"userId"`
	Title      string           `db:"title" json:"title"`
	Body       string           `db:"body" json:"body"`
	ImageUrl   string           `db:"image_url" json:"imageUrl,omitempty"`
	Type       NotificationType `db:"type" json:"type"`
	SenderId   string           `db:"sender_id" json:"senderId,omitempty"`
	SenderName string           `db:"sender_name" json:"senderName,omitempty"`
	IsRead     bool             `db:"is_read" json:"isRead"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}
