package database

import (
	"context"
	"fmt"
	"time"

	"jastip-settlement-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) InsertCartItem(ctx context.Context, item models.CartItem) error {
	if item.Id == "" {
		item.Id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, queryInsertCartItem,
		item.Id, item.UserId, item.ProductId, item.Quantity, toMillis(item.Deadline))
	if err != nil {
		return fmt.Errorf("unable to insert cart item: %w", err)
	}
	return nil
}

// DeleteExpiredCartItems removes reservations whose deadline has passed.
func (s *Service) DeleteExpiredCartItems(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, queryDeleteExpiredCartItems, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("unable to delete expired cart items: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	zap.L().Info("Expired cart items deleted", zap.Int64("count", deleted))
	return int(deleted), nil
}
