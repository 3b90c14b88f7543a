package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"jastip-settlement-go/internal/audit"
	"jastip-settlement-go/internal/database"
	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDb(t *testing.T) (*database.Service, func()) {
	service, err := database.NewService(context.Background(), database.MemoryConfig())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	service.SetClock(func() time.Time { return testNow })
	return service, service.Close
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func mustUser(t *testing.T, db *database.Service, id string) {
	t.Helper()
	if _, err := db.CreateUser(context.Background(), id, id, id+"@example.com"); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", id, err)
	}
}

func mustTransaction(t *testing.T, db *database.Service, tx models.Transaction) {
	t.Helper()
	if err := db.InsertTransaction(context.Background(), tx); err != nil {
		t.Fatalf("InsertTransaction(%s) failed: %v", tx.Id, err)
	}
}

func mustReturn(t *testing.T, db *database.Service, rr models.ReturnRequest) {
	t.Helper()
	if err := db.InsertReturnRequest(context.Background(), rr); err != nil {
		t.Fatalf("InsertReturnRequest(%s) failed: %v", rr.Id, err)
	}
}

func saldo(t *testing.T, db *database.Service, id string) decimal.Decimal {
	t.Helper()
	user, err := db.GetUserById(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserById(%s) failed: %v", id, err)
	}
	return user.Saldo
}

func newSettlementJob(db store.SettlementStore) *SettlementJob {
	return NewSettlementJob(SettlementJobConfig{Store: db, GracePeriod: 60 * time.Second, PageSize: 200})
}

func newReturnTimeoutJob(db store.ReturnStore) *ReturnTimeoutJob {
	return NewReturnTimeoutJob(ReturnTimeoutJobConfig{Store: db, TimeoutWindow: 15 * time.Minute, PageSize: 200})
}

func escrowTransaction() models.Transaction {
	return models.Transaction{
		Id:           "tx1",
		BuyerId:      "B1",
		SellerId:     "S1",
		Amount:       decimal.NewFromInt(550),
		EscrowAmount: decimal.NewFromInt(500),
		IsEscrow:     true,
		Status:       models.TransactionDelivered,
		DeliveredAt:  ago(120 * time.Second),
	}
}

func TestSettlement_CompletesAndDisburses(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "S1")
	mustTransaction(t, db, escrowTransaction())

	summary, err := newSettlementJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 || summary.SkippedCount != 0 || summary.ErrorCount != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	tx, _ := db.GetTransaction(ctx, "tx1")
	if tx.Status != models.TransactionCompleted {
		t.Errorf("Expected completed, got %s", tx.Status)
	}
	if tx.CompletedAt == nil || !tx.CompletedAt.Equal(testNow) {
		t.Errorf("Expected completedAt at server time, got %v", tx.CompletedAt)
	}
	if !tx.AutoCompleted {
		t.Error("Expected autoCompleted")
	}
	if s := saldo(t, db, "S1"); !s.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected seller saldo 500, got %s", s)
	}
}

func TestSettlement_ActiveReturnSkips(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "S1")
	mustTransaction(t, db, escrowTransaction())
	mustReturn(t, db, models.ReturnRequest{Id: "rr1", TransactionId: "tx1", Status: models.ReturnPending})

	job := newSettlementJob(db)
	for i := 0; i < 3; i++ {
		summary, err := job.Run(ctx)
		if err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
		if summary.SkippedCount != 1 || summary.CompletedCount != 0 {
			t.Errorf("Run %d: unexpected summary %+v", i, summary)
		}
	}

	tx, _ := db.GetTransaction(ctx, "tx1")
	if tx.Status != models.TransactionDelivered || tx.CompletedAt != nil {
		t.Errorf("Expected disputed transaction untouched, got %s", tx.Status)
	}
	if s := saldo(t, db, "S1"); !s.IsZero() {
		t.Errorf("Expected seller saldo 0, got %s", s)
	}
}

func TestSettlement_FinalReturnDoesNotBlock(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "S1")
	mustTransaction(t, db, escrowTransaction())
	mustReturn(t, db, models.ReturnRequest{Id: "rr1", TransactionId: "tx1", Status: models.ReturnFinalRejected})

	summary, err := newSettlementJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 {
		t.Errorf("Expected rejected dispute to allow completion, got %+v", summary)
	}
}

func TestSettlement_Idempotent(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "S1")
	mustTransaction(t, db, escrowTransaction())

	job := newSettlementJob(db)
	if _, err := job.Run(ctx); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	first, _ := db.GetTransaction(ctx, "tx1")

	summary, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if summary.CompletedCount != 0 || summary.SkippedCount != 0 || summary.ErrorCount != 0 {
		t.Errorf("Expected empty second run, got %+v", summary)
	}

	second, _ := db.GetTransaction(ctx, "tx1")
	if !first.CompletedAt.Equal(*second.CompletedAt) || first.Status != second.Status {
		t.Errorf("Expected identical state, got %+v vs %+v", first, second)
	}
	if s := saldo(t, db, "S1"); !s.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected single disbursement of 500, got %s", s)
	}
}

func TestSettlement_NonEscrowMovesNoFunds(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "S1")
	tx := escrowTransaction()
	tx.IsEscrow = false
	mustTransaction(t, db, tx)

	summary, err := newSettlementJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 {
		t.Errorf("Expected completion, got %+v", summary)
	}
	if s := saldo(t, db, "S1"); !s.IsZero() {
		t.Errorf("Expected no funds moved, got %s", s)
	}
}

func TestSettlement_GracePeriodNotElapsed(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	tx := escrowTransaction()
	tx.DeliveredAt = ago(30 * time.Second)
	mustTransaction(t, db, tx)

	summary, err := newSettlementJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount+summary.SkippedCount+summary.ErrorCount != 0 {
		t.Errorf("Expected no candidates, got %+v", summary)
	}
}

func TestSettlement_MissingSellerCountsError(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	// Seller S1 does not exist: the batch rolls back and the next candidate still settles.
	mustTransaction(t, db, escrowTransaction())
	mustUser(t, db, "S2")
	other := escrowTransaction()
	other.Id = "tx2"
	other.SellerId = "S2"
	mustTransaction(t, db, other)

	summary, err := newSettlementJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 || summary.ErrorCount != 1 {
		t.Errorf("Expected 1 completed and 1 error, got %+v", summary)
	}

	tx, _ := db.GetTransaction(ctx, "tx1")
	if tx.Status != models.TransactionDelivered {
		t.Errorf("Expected failed candidate rolled back, got %s", tx.Status)
	}
}

func TestReturnTimeout_RefundsBuyer(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "B1")
	mustTransaction(t, db, models.Transaction{
		Id: "tx1", BuyerId: "B1", SellerId: "S1", Amount: decimal.NewFromInt(300),
		Status: models.TransactionDelivered, DeliveredAt: ago(time.Hour),
	})
	mustReturn(t, db, models.ReturnRequest{
		Id: "rr1", TransactionId: "tx1", BuyerId: "B1", SellerId: "S1", Reason: "wrong size",
		Status: models.ReturnAwaitingSellerResponse, CreatedAt: testNow.Add(-20 * time.Minute),
	})

	summary, err := newReturnTimeoutJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 || summary.SkippedCount != 0 || summary.ErrorCount != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	rr, _ := db.GetReturnRequest(ctx, "rr1")
	if rr.Status != models.ReturnFinalApproved {
		t.Errorf("Expected finalApproved, got %s", rr.Status)
	}
	if rr.ResponseReason != TimeoutResponseReason || rr.RespondedAt == nil {
		t.Errorf("Expected timeout response recorded, got %+v", rr)
	}

	tx, _ := db.GetTransaction(ctx, "tx1")
	if tx.Status != models.TransactionRefunded || tx.RefundedAt == nil || tx.CompletedAt == nil {
		t.Errorf("Expected refunded with timestamps, got %+v", tx)
	}
	if tx.RefundAmount == nil || !tx.RefundAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected refundAmount 300, got %v", tx.RefundAmount)
	}
	if s := saldo(t, db, "B1"); !s.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected buyer saldo 300, got %s", s)
	}

	logs, err := db.ListRefundLogs(ctx, "tx1")
	if err != nil {
		t.Fatalf("ListRefundLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected exactly one refund log, got %d", len(logs))
	}
	log := logs[0]
	if log.ReturnRequestId != "rr1" || log.ProcessedBy != "cron" || log.Type != "return_refund" {
		t.Errorf("Unexpected refund log %+v", log)
	}
	if log.BuyerReason != "wrong size" || !log.EscrowAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected buyer reason and escrow fallback to amount, got %+v", log)
	}

	// Second run finds nothing left to do.
	again, err := newReturnTimeoutJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if again.CompletedCount != 0 {
		t.Errorf("Expected no-op second run, got %+v", again)
	}
	if s := saldo(t, db, "B1"); !s.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected buyer saldo to stay 300, got %s", s)
	}
}

func TestReturnTimeout_WindowNotElapsed(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()

	mustTransaction(t, db, models.Transaction{Id: "tx1", Status: models.TransactionDelivered, Amount: decimal.NewFromInt(10)})
	mustReturn(t, db, models.ReturnRequest{
		Id: "rr1", TransactionId: "tx1", Status: models.ReturnAwaitingSellerResponse,
		CreatedAt: testNow.Add(-5 * time.Minute),
	})

	summary, err := newReturnTimeoutJob(db).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 0 {
		t.Errorf("Expected request inside window to be left alone, got %+v", summary)
	}
}

func TestReturnTimeout_AlreadyRefundedSkips(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "B1")
	mustTransaction(t, db, models.Transaction{
		Id: "tx1", BuyerId: "B1", Amount: decimal.NewFromInt(300),
		Status: models.TransactionRefunded, RefundedAt: ago(time.Hour), CompletedAt: ago(time.Hour),
	})
	mustReturn(t, db, models.ReturnRequest{
		Id: "rr1", TransactionId: "tx1", Status: models.ReturnAwaitingSellerResponse,
		CreatedAt: testNow.Add(-20 * time.Minute),
	})

	summary, err := newReturnTimeoutJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.SkippedCount != 1 || summary.CompletedCount != 0 {
		t.Errorf("Expected skip, got %+v", summary)
	}
	rr, _ := db.GetReturnRequest(ctx, "rr1")
	if rr.Status != models.ReturnAwaitingSellerResponse {
		t.Errorf("Expected request untouched, got %s", rr.Status)
	}
	if s := saldo(t, db, "B1"); !s.IsZero() {
		t.Errorf("Expected no refund, got %s", s)
	}
}

func TestReturnTimeout_CompletedTransactionSkips(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()

	mustTransaction(t, db, models.Transaction{
		Id: "tx1", Amount: decimal.NewFromInt(300), Status: models.TransactionCompleted, CompletedAt: ago(time.Hour),
	})
	mustReturn(t, db, models.ReturnRequest{
		Id: "rr1", TransactionId: "tx1", Status: models.ReturnAwaitingSellerResponse,
		CreatedAt: testNow.Add(-20 * time.Minute),
	})

	summary, err := newReturnTimeoutJob(db).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.SkippedCount != 1 {
		t.Errorf("Expected completed transaction to be skipped, got %+v", summary)
	}
}

func TestReturnTimeout_FinalRequestIsNoOp(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "B1")
	mustTransaction(t, db, models.Transaction{
		Id: "tx1", BuyerId: "B1", Amount: decimal.NewFromInt(300), Status: models.TransactionDelivered,
	})
	mustReturn(t, db, models.ReturnRequest{
		Id: "rr1", TransactionId: "tx1", Status: models.ReturnFinalApproved,
		CreatedAt: testNow.Add(-time.Hour),
	})

	if _, err := newReturnTimeoutJob(db).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	tx, _ := db.GetTransaction(ctx, "tx1")
	if tx.Status != models.TransactionDelivered {
		t.Errorf("Expected no mutation, got %s", tx.Status)
	}

	// A stale read that still returns the final request is counted as skipped.
	stale := &fakeStore{
		now: testNow,
		returns: []models.ReturnRequest{
			{Id: "rr1", TransactionId: "tx1", Status: models.ReturnFinalApproved, CreatedAt: testNow.Add(-time.Hour)},
		},
		transactions: map[string]models.Transaction{
			"tx1": {Id: "tx1", Amount: decimal.NewFromInt(300), Status: models.TransactionDelivered},
		},
	}
	summary, err := newReturnTimeoutJob(stale).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.SkippedCount != 1 || stale.commits != 0 {
		t.Errorf("Expected skip without commit, got %+v and %d commits", summary, stale.commits)
	}
}

func TestReturnTimeout_MissingTransactionSkips(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustReturn(t, db, models.ReturnRequest{
		Id: "rr1", TransactionId: "gone", Status: models.ReturnAwaitingSellerResponse,
		CreatedAt: testNow.Add(-20 * time.Minute),
	})

	summary, err := newReturnTimeoutJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.SkippedCount != 1 || summary.ErrorCount != 0 {
		t.Errorf("Expected orphan to be skipped, got %+v", summary)
	}
	jobErrors, _ := db.ListJobErrors(ctx, 10)
	if len(jobErrors) != 0 {
		t.Errorf("Expected no job errors for an orphan, got %d", len(jobErrors))
	}
}

func TestSettlement_BlockedRowsDoNotStarveLaterCandidates(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	mustUser(t, db, "S1")
	for i, id := range []string{"d1", "d2", "d3", "d4"} {
		mustTransaction(t, db, models.Transaction{
			Id: id, SellerId: "S1", Amount: decimal.NewFromInt(100), EscrowAmount: decimal.NewFromInt(100),
			IsEscrow: true, Status: models.TransactionDelivered, DeliveredAt: ago(time.Duration(10-i) * time.Hour),
		})
		mustReturn(t, db, models.ReturnRequest{Id: "rr-" + id, TransactionId: id, Status: models.ReturnPending})
	}
	tx := escrowTransaction()
	tx.DeliveredAt = ago(time.Hour)
	mustTransaction(t, db, tx)

	job := NewSettlementJob(SettlementJobConfig{Store: db, GracePeriod: time.Minute, PageSize: 3})
	summary, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 || summary.SkippedCount != 4 {
		t.Errorf("Expected 1 completed and 4 skipped across pages, got %+v", summary)
	}

	got, _ := db.GetTransaction(ctx, "tx1")
	if got.Status != models.TransactionCompleted {
		t.Errorf("Expected tx1 completed behind blocked rows, got %s", got.Status)
	}
	if s := saldo(t, db, "S1"); !s.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected seller saldo 500, got %s", s)
	}
}

func TestReturnTimeout_OrphansDoNotStarveLaterRequests(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	for i, id := range []string{"o1", "o2", "o3"} {
		mustReturn(t, db, models.ReturnRequest{
			Id: id, TransactionId: "gone-" + id, Status: models.ReturnAwaitingSellerResponse,
			CreatedAt: testNow.Add(-time.Duration(10-i) * time.Hour),
		})
	}
	mustUser(t, db, "B1")
	mustTransaction(t, db, models.Transaction{
		Id: "tx1", BuyerId: "B1", SellerId: "S1", Amount: decimal.NewFromInt(300),
		Status: models.TransactionDelivered, DeliveredAt: ago(time.Hour),
	})
	mustReturn(t, db, models.ReturnRequest{
		Id: "rr1", TransactionId: "tx1", BuyerId: "B1", SellerId: "S1",
		Status: models.ReturnAwaitingSellerResponse, CreatedAt: testNow.Add(-20 * time.Minute),
	})

	job := NewReturnTimeoutJob(ReturnTimeoutJobConfig{Store: db, TimeoutWindow: 15 * time.Minute, PageSize: 3})
	summary, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 || summary.SkippedCount != 3 {
		t.Errorf("Expected 1 completed and 3 skipped across pages, got %+v", summary)
	}

	rr, _ := db.GetReturnRequest(ctx, "rr1")
	if rr.Status != models.ReturnFinalApproved {
		t.Errorf("Expected rr1 finalApproved behind orphans, got %s", rr.Status)
	}
	if s := saldo(t, db, "B1"); !s.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected buyer saldo 300, got %s", s)
	}
}

func TestSettlement_PagesThroughFakeStore(t *testing.T) {
	fake := &fakeStore{now: testNow}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		fake.candidates = append(fake.candidates, models.Transaction{
			Id: id, Status: models.TransactionDelivered, DeliveredAt: ago(time.Hour),
		})
	}

	job := NewSettlementJob(SettlementJobConfig{Store: fake, GracePeriod: time.Minute, PageSize: 2})
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 5 {
		t.Errorf("Expected every page processed, got %+v", summary)
	}
}

func TestReturnTimeout_FailureRecordsJobError(t *testing.T) {
	ctx := context.Background()
	fake := &fakeStore{
		now: testNow,
		returns: []models.ReturnRequest{
			{Id: "rr-bad", TransactionId: "tx-bad", Status: models.ReturnAwaitingSellerResponse},
			{Id: "rr-ok", TransactionId: "tx-ok", Status: models.ReturnAwaitingSellerResponse},
		},
		transactions: map[string]models.Transaction{
			"tx-bad": {Id: "tx-bad", BuyerId: "B1", Amount: decimal.NewFromInt(10), Status: models.TransactionDelivered},
			"tx-ok":  {Id: "tx-ok", BuyerId: "B2", Amount: decimal.NewFromInt(20), Status: models.TransactionDelivered},
		},
		failCommitFor: "tx-bad",
	}
	sink := &countingSink{}
	job := NewReturnTimeoutJob(ReturnTimeoutJobConfig{Store: fake, Sink: sink, TimeoutWindow: 15 * time.Minute, PageSize: 200})

	summary, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 || summary.ErrorCount != 1 {
		t.Errorf("Expected 1 completed and 1 error, got %+v", summary)
	}
	if len(fake.jobErrors) != 1 || fake.jobErrors[0].RequestId != "rr-bad" || !fake.jobErrors[0].Retryable {
		t.Errorf("Expected retryable job error for rr-bad, got %+v", fake.jobErrors)
	}
	if sink.refunds != 1 {
		t.Errorf("Expected one refund event, got %d", sink.refunds)
	}
}

func TestSettlement_TransientReadIsIsolated(t *testing.T) {
	fake := &fakeStore{
		now: testNow,
		candidates: []models.Transaction{
			{Id: "tx-bad", Status: models.TransactionDelivered, DeliveredAt: ago(time.Hour)},
			{Id: "tx-ok", SellerId: "S1", IsEscrow: true, EscrowAmount: decimal.NewFromInt(5), Status: models.TransactionDelivered, DeliveredAt: ago(time.Hour)},
		},
		failActiveFor: "tx-bad",
	}
	sink := &countingSink{}
	job := NewSettlementJob(SettlementJobConfig{Store: fake, Sink: sink, GracePeriod: time.Minute, PageSize: 200})

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 || summary.ErrorCount != 1 {
		t.Errorf("Expected 1 completed and 1 error, got %+v", summary)
	}
	if sink.settlements != 1 {
		t.Errorf("Expected one settlement event, got %d", sink.settlements)
	}
}

func TestSettlement_LostRaceCountsSkipped(t *testing.T) {
	fake := &fakeStore{
		now: testNow,
		candidates: []models.Transaction{
			{Id: "tx1", Status: models.TransactionDelivered, DeliveredAt: ago(time.Hour)},
		},
		commitErr: store.ErrConcurrentModification,
	}

	summary, err := newSettlementJob(fake).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.SkippedCount != 1 || summary.ErrorCount != 0 {
		t.Errorf("Expected lost race to count as skipped, got %+v", summary)
	}
}

func TestSettlement_QueryFailureAbortsRun(t *testing.T) {
	fake := &fakeStore{now: testNow, listErr: errors.New("store unavailable")}

	if _, err := newSettlementJob(fake).Run(context.Background()); err == nil {
		t.Error("Expected run-level error")
	}
	if _, err := newReturnTimeoutJob(fake).Run(context.Background()); err == nil {
		t.Error("Expected run-level error")
	}
}

func TestCartCleanupJob(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if err := db.InsertCartItem(ctx, models.CartItem{UserId: "u1", ProductId: "p1", Quantity: 1, Deadline: testNow.Add(-time.Minute)}); err != nil {
		t.Fatalf("InsertCartItem failed: %v", err)
	}

	summary, err := NewCartCleanupJob(db).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.CompletedCount != 1 {
		t.Errorf("Expected 1 deleted, got %+v", summary)
	}
}

// fakeStore is a scripted backend for failure-path tests.
type fakeStore struct {
	now           time.Time
	candidates    []models.Transaction
	returns       []models.ReturnRequest
	transactions  map[string]models.Transaction
	listErr       error
	commitErr     error
	failActiveFor string
	failCommitFor string

	commits   int
	jobErrors []models.JobError
}

func (f *fakeStore) Now(context.Context) (time.Time, error) { return f.now, nil }

func (f *fakeStore) ListSettlementCandidates(_ context.Context, _ time.Time, after store.Cursor, limit int) ([]models.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	start := 0
	for i, tx := range f.candidates {
		if !after.IsZero() && tx.Id == after.Id {
			start = i + 1
		}
	}
	return pageOf(f.candidates, start, limit), nil
}

func pageOf[T any](rows []T, start, limit int) []T {
	if start >= len(rows) {
		return nil
	}
	end := min(start+limit, len(rows))
	return rows[start:end]
}

func (f *fakeStore) ListActiveReturns(_ context.Context, transactionId string) ([]models.ReturnRequest, error) {
	if transactionId == f.failActiveFor {
		return nil, errors.New("read timeout")
	}
	return nil, nil
}

func (f *fakeStore) ListExpiredReturnRequests(_ context.Context, _ time.Time, after store.Cursor, limit int) ([]models.ReturnRequest, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	start := 0
	for i, rr := range f.returns {
		if !after.IsZero() && rr.Id == after.Id {
			start = i + 1
		}
	}
	return pageOf(f.returns, start, limit), nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	tx, ok := f.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tx, nil
}

func (f *fakeStore) CommitBatch(_ context.Context, batch *store.Batch) (time.Time, error) {
	if f.commitErr != nil {
		return time.Time{}, f.commitErr
	}
	for _, op := range batch.Ops() {
		if o, ok := op.(store.RefundTransactionOp); ok && o.TransactionId == f.failCommitFor {
			return time.Time{}, errors.New("commit aborted")
		}
	}
	f.commits++
	return f.now, nil
}

func (f *fakeStore) RecordJobError(_ context.Context, jobErr models.JobError) error {
	f.jobErrors = append(f.jobErrors, jobErr)
	return nil
}

type countingSink struct {
	settlements int
	refunds     int
	runs        int
}

func (c *countingSink) SettlementCompleted(context.Context, audit.SettlementEvent) { c.settlements++ }
func (c *countingSink) ReturnRefunded(context.Context, audit.RefundEvent)         { c.refunds++ }
func (c *countingSink) RunFinished(context.Context, models.JobSummary)            { c.runs++ }
