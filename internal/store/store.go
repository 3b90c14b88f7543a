package store

import (
	"context"
	"errors"
	"time"

	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("document not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrDuplicateRefundLog     = errors.New("refund log already exists")
)

// Cursor is a keyset position: rows strictly after (At, Id) in scan order.
// The zero Cursor starts at the beginning.
type Cursor struct {
	At time.Time
	Id string
}

func (c Cursor) IsZero() bool {
	return c.At.IsZero() && c.Id == ""
}

// SettlementStore is what the escrow settlement job needs from the backend.
type SettlementStore interface {
	Now(ctx context.Context) (time.Time, error)
	ListSettlementCandidates(ctx context.Context, deliveredBefore time.Time, after Cursor, limit int) ([]models.Transaction, error)
	ListActiveReturns(ctx context.Context, transactionId string) ([]models.ReturnRequest, error)
	CommitBatch(ctx context.Context, batch *Batch) (time.Time, error)
}

// ReturnStore is what the arbitration timeout job needs from the backend.
type ReturnStore interface {
	Now(ctx context.Context) (time.Time, error)
	ListExpiredReturnRequests(ctx context.Context, createdBefore time.Time, after Cursor, limit int) ([]models.ReturnRequest, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	CommitBatch(ctx context.Context, batch *Batch) (time.Time, error)
	RecordJobError(ctx context.Context, jobErr models.JobError) error
}

// CreateInvoiceParams contains the parameters for storing a new top-up invoice.
type CreateInvoiceParams struct {
	ExternalId       string
	UserId           string
	Amount           decimal.Decimal
	GatewayInvoiceId string
}

// LedgerStore defines the contract that every backend must satisfy.
type LedgerStore interface {
	SettlementStore
	ReturnStore

	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, error)
	IncrementSaldo(ctx context.Context, userId string, amount decimal.Decimal) error

	// --- Disputes / audit ---
	GetReturnRequest(ctx context.Context, id string) (*models.ReturnRequest, error)
	ListRefundLogs(ctx context.Context, transactionId string) ([]models.RefundLog, error)
	ListJobErrors(ctx context.Context, limit int) ([]models.JobError, error)

	// --- Invoices ---
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*models.Invoice, error)
	GetInvoice(ctx context.Context, externalId string) (*models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, externalId string, status models.InvoiceStatus) error
	MarkInvoicePaid(ctx context.Context, externalId string, paidAmount decimal.Decimal) (bool, error)

	// --- Cart ---
	DeleteExpiredCartItems(ctx context.Context, now time.Time) (int, error)

	// --- Notifications ---
	SetFcmToken(ctx context.Context, userId, token string) error
	CreateNotifications(ctx context.Context, notifications []models.Notification) ([]models.Notification, error)
	ListNotifications(ctx context.Context, userId string, limit int) ([]models.Notification, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
