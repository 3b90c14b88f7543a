package audit

import (
	"context"
	"time"

	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementEvent is emitted after a settlement batch commits.
type SettlementEvent struct {
	TransactionId string          `json:"transactionId"`
	SellerId      string          `json:"sellerId"`
	EscrowAmount  decimal.Decimal `json:"escrowAmount"`
	Disbursed     bool            `json:"disbursed"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// RefundEvent is emitted after a timed-out return request is refunded.
type RefundEvent struct {
	TransactionId   string          `json:"transactionId"`
	ReturnRequestId string          `json:"returnRequestId"`
	BuyerId         string          `json:"buyerId"`
	SellerId        string          `json:"sellerId"`
	RefundAmount    decimal.Decimal `json:"refundAmount"`
	Credited        bool            `json:"credited"`
	RefundedAt      time.Time       `json:"refundedAt"`
}

// Sink receives audit events. Delivery is best effort: implementations log
// their own failures and never fail the caller.
type Sink interface {
	SettlementCompleted(ctx context.Context, event SettlementEvent)
	ReturnRefunded(ctx context.Context, event RefundEvent)
	RunFinished(ctx context.Context, summary models.JobSummary)
}

// Multi fans every event out to each sink in order.
type Multi []Sink

func (m Multi) SettlementCompleted(ctx context.Context, event SettlementEvent) {
	for _, s := range m {
		s.SettlementCompleted(ctx, event)
	}
}

func (m Multi) ReturnRefunded(ctx context.Context, event RefundEvent) {
	for _, s := range m {
		s.ReturnRefunded(ctx, event)
	}
}

func (m Multi) RunFinished(ctx context.Context, summary models.JobSummary) {
	for _, s := range m {
		s.RunFinished(ctx, summary)
	}
}

// LogSink writes audit events to the structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink falls back to the global logger when logger is nil.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.L()
	}
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) SettlementCompleted(_ context.Context, event SettlementEvent) {
	s.logger.Info("Transaction auto-completed",
		zap.String("transaction_id", event.TransactionId),
		zap.String("seller_id", event.SellerId),
		zap.String("escrow_amount", event.EscrowAmount.String()),
		zap.Bool("disbursed", event.Disbursed),
		zap.Time("completed_at", event.CompletedAt))
}

func (s *LogSink) ReturnRefunded(_ context.Context, event RefundEvent) {
	s.logger.Info("Return request auto-approved and refunded",
		zap.String("transaction_id", event.TransactionId),
		zap.String("return_request_id", event.ReturnRequestId),
		zap.String("buyer_id", event.BuyerId),
		zap.String("seller_id", event.SellerId),
		zap.String("refund_amount", event.RefundAmount.String()),
		zap.Bool("credited", event.Credited),
		zap.Time("refunded_at", event.RefundedAt))
}

func (s *LogSink) RunFinished(_ context.Context, summary models.JobSummary) {
	s.logger.Info("Job run finished",
		zap.String("job", summary.Job),
		zap.Int("completed", summary.CompletedCount),
		zap.Int("skipped", summary.SkippedCount),
		zap.Int("errors", summary.ErrorCount),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))
}
