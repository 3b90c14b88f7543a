package database

import (
	"context"
	"database/sql"
	"fmt"

	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateNotifications writes every inbox entry in one transaction. Missing
// ids and timestamps are filled in and the stored rows are returned.
func (s *Service) CreateNotifications(ctx context.Context, notifications []models.Notification) ([]models.Notification, error) {
	if len(notifications) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	stored := make([]models.Notification, 0, len(notifications))
	for _, n := range notifications {
		if n.Id == "" {
			n.Id = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		n.IsRead = false

		_, err := tx.ExecContext(ctx, queryInsertNotification,
			n.Id, n.UserId, n.Title, n.Body, n.ImageUrl, string(n.Type),
			n.SenderId, n.SenderName, toMillis(n.CreatedAt))
		if err != nil {
			return nil, fmt.Errorf("unable to insert notification for %s: %w", n.UserId, err)
		}
		stored = append(stored, n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Debug("Notifications stored", zap.Int("count", len(stored)))
	return stored, nil
}

// ListNotifications returns a user's inbox, newest first.
func (s *Service) ListNotifications(ctx context.Context, userId string, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, queryListNotifications, userId, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query notifications: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var kind string
		var createdAt int64
		if err := rows.Scan(&n.Id, &n.UserId, &n.Title, &n.Body, &n.ImageUrl, &kind,
			&n.SenderId, &n.SenderName, &n.IsRead, &createdAt); err != nil {
			return nil, fmt.Errorf("unable to scan notification row: %w", err)
		}
		n.Type = models.NotificationType(kind)
		n.CreatedAt = fromMillis(createdAt)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

// SetFcmToken registers the push token of a user's device. An empty token
// unregisters it.
func (s *Service) SetFcmToken(ctx context.Context, userId, token string) error {
	result, err := s.db.ExecContext(ctx, querySetFcmToken, token, toMillis(s.now()), userId)
	if err != nil {
		return fmt.Errorf("unable to set fcm token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
	}
	return nil
}
