package api

import (
	"net/http"

	"jastip-settlement-go/internal/jobs"

	"github.com/go-chi/chi/v5"
)

// RouterConfig carries the shared secrets checked at the HTTP boundary.
// Empty values disable the corresponding check.
type RouterConfig struct {
	CronSecret   string
	WebhookToken string
}

func NewRouter(svc *LedgerService, cfg RouterConfig) http.Handler {
	h := &handler{svc: svc, cfg: cfg}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", h.healthz)

	r.Route("/cron", func(r chi.Router) {
		r.Use(h.cronAuthMiddleware)
		r.Get("/auto-complete-transactions", h.runJob(jobs.JobAutoCompleteTransactions))
		r.Get("/auto-approve-returns", h.runJob(jobs.JobAutoApproveReturns))
	})
	r.Get("/cleanup-expired-cart-items", h.cleanupExpiredCartItems)

	r.Post("/create-invoice", h.createInvoice)
	r.Get("/check-invoice/{externalId}", h.checkInvoice)
	r.Post("/xendit-webhook", h.xenditWebhook)

	r.Post("/send-announcement", h.sendAnnouncement)
	r.Post("/sendNotification", h.sendNotification)

	r.Get("/users/{userId}/balance", h.userBalance)
	r.Get("/users/{userId}/notifications", h.userNotifications)

	return r
}
