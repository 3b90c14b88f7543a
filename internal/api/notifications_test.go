package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"jastip-settlement-go/internal/database"
	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/notify"
)

type recordingNotifier struct {
	sent   []notify.Message
	failed int
	err    error
}

func (n *recordingNotifier) Send(_ context.Context, messages []notify.Message) (notify.Result, error) {
	if n.err != nil {
		return notify.Result{FailureCount: len(messages)}, n.err
	}
	n.sent = append(n.sent, messages...)
	return notify.Result{SuccessCount: len(messages) - n.failed, FailureCount: n.failed}, nil
}

func newNotifyRouter(t *testing.T, db *database.Service, notifier notify.Notifier) http.Handler {
	t.Helper()
	return NewRouter(NewLedgerService(db, nil, stubRunner{}, notifier), RouterConfig{})
}

func seedDevice(t *testing.T, db *database.Service, id, token string) {
	t.Helper()
	seedUser(t, db, id)
	if err := db.SetFcmToken(context.Background(), id, token); err != nil {
		t.Fatalf("SetFcmToken(%s) failed: %v", id, err)
	}
}

func inboxOf(t *testing.T, db *database.Service, id string) []models.Notification {
	t.Helper()
	notifications, err := db.ListNotifications(context.Background(), id, 10)
	if err != nil {
		t.Fatalf("ListNotifications(%s) failed: %v", id, err)
	}
	return notifications
}

func TestSendAnnouncement(t *testing.T) {
	db := setupTestDb(t)
	notifier := &recordingNotifier{}
	router := newNotifyRouter(t, db, notifier)

	seedDevice(t, db, "admin", "tok-admin")
	seedDevice(t, db, "u1", "tok-u1")
	seedDevice(t, db, "u2", "tok-u2")
	seedUser(t, db, "no-device")

	rec := do(t, router, http.MethodPost, "/send-announcement", models.AnnouncementRequest{
		Title: "Promo", Body: "Ongkir gratis hari ini", ImageUrl: "https://img.example/p.png", SenderId: "admin",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result models.AnnouncementResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !result.Success || result.SentTo != 2 || result.TotalRecipients != 2 || result.FailedCount != 0 {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("Expected 2 pushes, got %d", len(notifier.sent))
	}
	for _, m := range notifier.sent {
		if m.Token == "tok-admin" {
			t.Error("Expected sender to be excluded from the broadcast")
		}
		if m.Data["type"] != "announcement" || m.Data["imageUrl"] == "" {
			t.Errorf("Unexpected push data %v", m.Data)
		}
	}

	inbox := inboxOf(t, db, "u1")
	if len(inbox) != 1 {
		t.Fatalf("Expected 1 inbox entry for u1, got %d", len(inbox))
	}
	if inbox[0].IsRead || inbox[0].Type != models.NotificationAnnouncement || inbox[0].SenderId != "admin" {
		t.Errorf("Unexpected inbox entry %+v", inbox[0])
	}
	if got := inboxOf(t, db, "admin"); len(got) != 0 {
		t.Errorf("Expected no inbox entry for the sender, got %d", len(got))
	}
	if got := inboxOf(t, db, "no-device"); len(got) != 0 {
		t.Errorf("Expected no inbox entry without a device, got %d", len(got))
	}
}

func TestSendAnnouncement_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      models.AnnouncementRequest
		notifier *recordingNotifier
		devices  bool
		want     int
	}{
		{"missing title", models.AnnouncementRequest{Body: "b", SenderId: "admin"}, &recordingNotifier{}, true, http.StatusBadRequest},
		{"missing sender", models.AnnouncementRequest{Title: "t", Body: "b"}, &recordingNotifier{}, true, http.StatusBadRequest},
		{"no recipients", models.AnnouncementRequest{Title: "t", Body: "b", SenderId: "admin"}, &recordingNotifier{}, false, http.StatusNotFound},
		{"push failure", models.AnnouncementRequest{Title: "t", Body: "b", SenderId: "admin"}, &recordingNotifier{err: errors.New("fcm down")}, true, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDb(t)
			if tt.devices {
				seedDevice(t, db, "u1", "tok-u1")
			} else {
				seedUser(t, db, "u1")
			}
			router := newNotifyRouter(t, db, tt.notifier)

			rec := do(t, router, http.MethodPost, "/send-announcement", tt.req, nil)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if got := inboxOf(t, db, "u1"); len(got) != 0 {
				t.Errorf("Expected nothing stored on failure, got %d", len(got))
			}
		})
	}
}

func TestSendAnnouncement_PartialDeliveryIsReported(t *testing.T) {
	db := setupTestDb(t)
	router := newNotifyRouter(t, db, &recordingNotifier{failed: 1})
	seedDevice(t, db, "u1", "tok-u1")
	seedDevice(t, db, "u2", "tok-u2")

	rec := do(t, router, http.MethodPost, "/send-announcement", models.AnnouncementRequest{Title: "t", Body: "b", SenderId: "admin"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var result models.AnnouncementResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.SentTo != 1 || result.FailedCount != 1 || result.TotalRecipients != 2 {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(inboxOf(t, db, "u1")) != 1 || len(inboxOf(t, db, "u2")) != 1 {
		t.Error("Expected every recipient's inbox to be written")
	}
}

func TestSendNotification(t *testing.T) {
	db := setupTestDb(t)
	notifier := &recordingNotifier{}
	router := newNotifyRouter(t, db, notifier)
	seedDevice(t, db, "buyer", "tok-buyer")

	rec := do(t, router, http.MethodPost, "/sendNotification", models.SendNotificationRequest{
		RecipientId: "buyer", SenderName: "Sari", MessageText: "Barang sudah dibeli",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(notifier.sent) != 1 || notifier.sent[0].Token != "tok-buyer" {
		t.Fatalf("Expected one push to the buyer's device, got %+v", notifier.sent)
	}
	if notifier.sent[0].Title != "New message from Sari" || notifier.sent[0].Data["type"] != "chat" {
		t.Errorf("Unexpected push %+v", notifier.sent[0])
	}

	inbox := inboxOf(t, db, "buyer")
	if len(inbox) != 1 {
		t.Fatalf("Expected 1 inbox entry, got %d", len(inbox))
	}
	if inbox[0].IsRead || inbox[0].Type != models.NotificationChat || inbox[0].SenderName != "Sari" || inbox[0].Body != "Barang sudah dibeli" {
		t.Errorf("Unexpected inbox entry %+v", inbox[0])
	}

	rec = do(t, router, http.MethodGet, "/users/buyer/notifications", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing inbox, got %d", rec.Code)
	}
	var listed []models.Notification
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("Failed to decode inbox: %v", err)
	}
	if len(listed) != 1 || listed[0].Id != inbox[0].Id {
		t.Errorf("Expected listed inbox to match store, got %+v", listed)
	}
}

func TestSendNotification_Errors(t *testing.T) {
	db := setupTestDb(t)
	seedDevice(t, db, "buyer", "tok-buyer")
	seedUser(t, db, "no-device")

	tests := []struct {
		name     string
		req      models.SendNotificationRequest
		notifier *recordingNotifier
		want     int
	}{
		{"missing text", models.SendNotificationRequest{RecipientId: "buyer", SenderName: "Sari"}, &recordingNotifier{}, http.StatusBadRequest},
		{"unknown recipient", models.SendNotificationRequest{RecipientId: "ghost", SenderName: "Sari", MessageText: "hi"}, &recordingNotifier{}, http.StatusNotFound},
		{"no device", models.SendNotificationRequest{RecipientId: "no-device", SenderName: "Sari", MessageText: "hi"}, &recordingNotifier{}, http.StatusNotFound},
		{"push failure", models.SendNotificationRequest{RecipientId: "buyer", SenderName: "Sari", MessageText: "hi"}, &recordingNotifier{err: errors.New("fcm down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newNotifyRouter(t, db, tt.notifier), http.MethodPost, "/sendNotification", tt.req, nil)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
	if got := inboxOf(t, db, "buyer"); len(got) != 0 {
		t.Errorf("Expected nothing stored after failures, got %d", len(got))
	}

	rec := do(t, newNotifyRouter(t, db, nil), http.MethodGet, "/users/ghost/notifications", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown user inbox, got %d", rec.Code)
	}
}
