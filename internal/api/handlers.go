package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"jastip-settlement-go/internal/jobs"
	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"
	"jastip-settlement-go/internal/xendit"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type handler struct {
	svc *LedgerService
	cfg RouterConfig
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, xendit.ErrInvoiceNotFound), errors.Is(err, jobs.ErrUnknownJob),
		errors.Is(err, ErrNoRecipients):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, ErrGatewayDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) runJob(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := h.svc.RunJob(r.Context(), name)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func (h *handler) cleanupExpiredCartItems(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.RunJob(r.Context(), jobs.JobCleanupExpiredCartItems)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deletedCount": summary.CompletedCount})
}

func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInvoiceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.CreateTopUpInvoice(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			message = "failed to create invoice"
		}
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) checkInvoice(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.CheckInvoice(r.Context(), chi.URLParam(r, "externalId"))
	if err != nil {
		code := statusFor(err)
		message := err.Error()
		if code == http.StatusInternalServerError {
			message = "failed to check invoice status"
		}
		writeError(w, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *handler) xenditWebhook(w http.ResponseWriter, r *http.Request) {
	if h.cfg.WebhookToken != "" && !secretEqual(r.Header.Get("x-callback-token"), h.cfg.WebhookToken) {
		zap.L().Warn("Invalid webhook token received", zap.String("request_id", requestIDFromContext(r.Context())))
		http.Error(w, "Forbidden: Invalid callback token", http.StatusForbidden)
		return
	}

	var callback models.InvoiceCallback
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&callback); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if _, err := h.svc.ProcessInvoiceCallback(r.Context(), callback); err != nil {
		http.Error(w, "Error updating database", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Webhook received"))
}

func (h *handler) userBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetUserBalance(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *handler) sendAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req models.AnnouncementRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.SendAnnouncement(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			zap.L().Error("Failed to send announcement", zap.Error(err))
			message = "failed to send announcement"
		}
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req models.SendNotificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SendNotification(r.Context(), req); err != nil {
		status := statusFor(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			zap.L().Error("Failed to send notification", zap.Error(err))
			message = "failed to send notification"
		}
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Notification sent and stored"})
}

func (h *handler) userNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.svc.ListNotifications(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}
