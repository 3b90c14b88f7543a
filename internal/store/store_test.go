package store

import (
	"errors"
	"testing"

	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestBatchCompleteTransaction_RejectsIllegalTransition(t *testing.T) {
	tests := []struct {
		status  models.TransactionStatus
		wantErr bool
	}{
		{models.TransactionDelivered, false},
		{models.TransactionShipped, true},
		{models.TransactionCompleted, true},
		{models.TransactionRefunded, true},
	}
	for _, tt := range tests {
		b := NewBatch()
		err := b.CompleteTransaction(models.Transaction{Id: "tx1", Status: tt.status})
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("status %s: expected ErrInvalidTransition, got %v", tt.status, err)
			}
			if b.Len() != 0 {
				t.Errorf("status %s: expected no ops queued, got %d", tt.status, b.Len())
			}
			continue
		}
		if err != nil {
			t.Errorf("status %s: unexpected error %v", tt.status, err)
		}
		if b.Len() != 1 {
			t.Errorf("status %s: expected 1 op, got %d", tt.status, b.Len())
		}
	}
}

func TestBatchRefundTransaction_CarriesAmount(t *testing.T) {
	b := NewBatch()
	tx := models.Transaction{Id: "tx1", Status: models.TransactionDelivered, Amount: decimal.NewFromInt(300)}
	if err := b.RefundTransaction(tx, "timeout"); err != nil {
		t.Fatalf("RefundTransaction failed: %v", err)
	}

	op, ok := b.Ops()[0].(RefundTransactionOp)
	if !ok {
		t.Fatalf("expected RefundTransactionOp, got %T", b.Ops()[0])
	}
	if !op.RefundAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected refund amount 300, got %s", op.RefundAmount)
	}
	if op.From != models.TransactionDelivered {
		t.Errorf("expected from delivered, got %s", op.From)
	}
}

func TestBatchResolveReturn_FinalIsTerminal(t *testing.T) {
	b := NewBatch()
	rr := models.ReturnRequest{Id: "rr1", Status: models.ReturnFinalApproved}
	err := b.ResolveReturn(rr, models.ReturnFinalApproved, "again")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestBatchIncrementSaldo_IgnoresEmptyAndNonPositive(t *testing.T) {
	b := NewBatch()
	if b.IncrementSaldo("", decimal.NewFromInt(10)) {
		t.Error("expected empty user to be ignored")
	}
	if b.IncrementSaldo("u1", decimal.Zero) {
		t.Error("expected zero amount to be ignored")
	}
	if b.IncrementSaldo("u1", decimal.NewFromInt(-5)) {
		t.Error("expected negative amount to be ignored")
	}
	if !b.IncrementSaldo("u1", decimal.NewFromInt(5)) {
		t.Error("expected positive amount to be queued")
	}
	if b.Len() != 1 {
		t.Errorf("expected 1 op, got %d", b.Len())
	}
}
