package jobs

import (
	"context"
	"fmt"
	"time"

	"jastip-settlement-go/internal/models"
)

const JobCleanupExpiredCartItems = "cleanup-expired-cart-items"

type cartStore interface {
	Now(ctx context.Context) (time.Time, error)
	DeleteExpiredCartItems(ctx context.Context, now time.Time) (int, error)
}

// CartCleanupJob deletes cart reservations past their deadline.
type CartCleanupJob struct {
	store cartStore
}

func NewCartCleanupJob(s cartStore) *CartCleanupJob {
	return &CartCleanupJob{store: s}
}

func (j *CartCleanupJob) Name() string {
	return JobCleanupExpiredCartItems
}

func (j *CartCleanupJob) Run(ctx context.Context) (models.JobSummary, error) {
	summary := models.JobSummary{Job: j.Name()}

	now, err := j.store.Now(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read server time: %w", err)
	}
	summary.StartedAt = now

	deleted, err := j.store.DeleteExpiredCartItems(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.CompletedCount = deleted
	summary.FinishedAt = finishedAt(ctx, j.store, now)
	return summary, nil
}
