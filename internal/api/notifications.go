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

package api

import (
	"context"
	"fmt"
	"strings"

	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/notify"

	"go.uber.org/zap"
)

const defaultInboxLimit = 50

// SendAnnouncement pushes a broadcast to every user with a registered device
// except the sender, then stores it in each recipient's inbox.
func (s *LedgerService) SendAnnouncement(ctx context.Context, req models.AnnouncementRequest) (*models.AnnouncementResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" || req.Body == "" || req.SenderId == "" {
		return nil, fmt.Errorf("%w: title, body and senderId are required", ErrInvalidRequest)
	}

	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	data := map[string]string{
		"type":     string(models.NotificationAnnouncement),
		"title":    req.Title,
		"body":     req.Body,
		"senderId": req.SenderId,
	}
	if req.ImageUrl != "" {
		data["imageUrl"] = req.ImageUrl
	}

	var messages []notify.Message
	var inbox []models.Notification
	for _, user := range users {
		if user.FcmToken == "" || user.Id == req.SenderId {
			continue
		}
		messages = append(messages, notify.Message{
			Token: user.FcmToken, Title: req.Title, Body: req.Body, ImageUrl: req.ImageUrl, Data: data,
		})
		inbox = append(inbox, models.Notification{
			UserId:   user.Id,
			Title:    req.Title,
			Body:     req.Body,
			ImageUrl: req.ImageUrl,
			Type:     models.NotificationAnnouncement,
			SenderId: req.SenderId,
		})
	}
	if len(messages) == 0 {
		return nil, ErrNoRecipients
	}

	result, err := s.notifier.Send(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to send announcement: %w", err)
	}
	zap.L().Info("Announcement pushed",
		zap.Int("delivered", result.SuccessCount),
		zap.Int("recipients", len(messages)))

	if _, err := s.store.CreateNotifications(ctx, inbox); err != nil {
		return nil, fmt.Errorf("failed to store announcement: %w", err)
	}

	return &models.AnnouncementResult{
		Success:         true,
		Message:         "Announcement sent",
		SentTo:          result.SuccessCount,
		TotalRecipients: len(messages),
		FailedCount:     result.FailureCount,
	}, nil
}

// SendNotification pushes a chat message to one user and stores it in their
// inbox.
func (s *LedgerService) SendNotification(ctx context.Context, req models.SendNotificationRequest) error {
	if req.RecipientId == "" || req.SenderName == "" || req.MessageText == "" {
		return fmt.Errorf("%w: recipientId, senderName and messageText are required", ErrInvalidRequest)
	}

	recipient, err := s.store.GetUserById(ctx, req.RecipientId)
	if err != nil {
		return err
	}
	if recipient.FcmToken == "" {
		return fmt.Errorf("%w: %s has no registered device", ErrNoRecipients, req.RecipientId)
	}

	title := "New message from " + req.SenderName
	result, err := s.notifier.Send(ctx, []notify.Message{{
		Token: recipient.FcmToken,
		Title: title,
		Body:  req.MessageText,
		Data: map[string]string{
			"type":        string(models.NotificationChat),
			"senderName":  req.SenderName,
			"messageText": req.MessageText,
		},
	}})
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	if result.SuccessCount == 0 {
		return fmt.Errorf("failed to send notification to %s", req.RecipientId)
	}

	_, err = s.store.CreateNotifications(ctx, []models.Notification{{
		UserId:     recipient.Id,
		Title:      title,
		Body:       req.MessageText,
		Type:       models.NotificationChat,
		SenderName: req.SenderName,
	}})
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	zap.L().Info("Chat notification sent", zap.String("recipient_id", recipient.Id))
	return nil
}

// ListNotifications returns a user's inbox, newest first.
func (s *LedgerService) ListNotifications(ctx context.Context, userId string) ([]models.Notification, error) {
	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}
	notifications, err := s.store.ListNotifications(ctx, userId, defaultInboxLimit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}
