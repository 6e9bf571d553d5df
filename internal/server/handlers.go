package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"patient-portal-server/internal/domain"
	"patient-portal-server/internal/repo"
	"patient-portal-server/internal/service"
)

type Handlers struct {
	payments      service.PaymentService
	notifications repo.NotificationRepo
	webhookSecret string
	log           *logrus.Logger
}

func NewHandlers(payments service.PaymentService, notifications repo.NotificationRepo, webhookSecret string, log *logrus.Logger) *Handlers {
	return &Handlers{payments: payments, notifications: notifications, webhookSecret: webhookSecret, log: log}
}

type payRequest struct {
	UserID      string  `json:"userId"`
	Amount      float64 `json:"amount"`
	Provider    string  `json:"provider"`
	Phone       string  `json:"phone"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// Pay handles POST /mobile-money/pay.
func (h *Handlers) Pay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.payments.Initiate(c.Request.Context(), service.InitiateRequest{
		Token:       c.GetString(ctxToken),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Provider:    req.Provider,
		Phone:       req.Phone,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"payment_ref":  result.PaymentRef,
		"checkout_uri": result.CheckoutURI,
		"message":      result.Message,
		"status":       result.Status,
	})
}

type webhookRequest struct {
	PaymentRef    string   `json:"payment_ref"`
	Status        string   `json:"status"`
	TransactionID *string  `json:"transaction_id"`
	Amount        *float64 `json:"amount"`
	Currency      *string  `json:"currency"`
}

// Webhook handles POST /mobile-money/webhook. The caller is the provider,
// not the end user, so there is no bearer auth; an optional shared secret
// guards the route when configured.
func (h *Handlers) Webhook(c *gin.Context) {
	if h.webhookSecret != "" && c.GetHeader("X-Webhook-Secret") != h.webhookSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
		return
	}

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	err := h.payments.Reconcile(c.Request.Context(), service.WebhookPayload{
		PaymentRef:    req.PaymentRef,
		Status:        req.Status,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook processed"})
}

// Status handles GET /mobile-money/status. A Bearer token, when present,
// takes precedence over the user_id query parameter.
func (h *Handlers) Status(c *gin.Context) {
	paymentRef := c.Query("payment_ref")
	userID := c.GetString(ctxUserID)
	if userID == "" {
		userID = c.Query("user_id")
	}
	if paymentRef == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_ref and user_id are required"})
		return
	}

	payment, err := h.payments.GetStatus(c.Request.Context(), paymentRef, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_ref":    payment.ID,
		"status":         payment.Status,
		"amount":         payment.Amount,
		"currency":       payment.Currency,
		"provider":       payment.Provider,
		"created_at":     payment.CreatedAt.Format(time.RFC3339),
		"paid_at":        formatTime(payment.PaidAt),
		"transaction_id": payment.TransactionID,
	})
}

// Notifications handles GET /notifications for the signed-in user.
func (h *Handlers) Notifications(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	list, err := h.notifications.ListByUser(c.Request.Context(), userID, 50)
	if err != nil {
		h.writeError(c, domain.WrapError(domain.KindInternal, "failed to load notifications", err))
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindInvalidInput, domain.KindInvalidPayload:
		status = http.StatusBadRequest
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindProviderError, domain.KindInternal:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}

	body := gin.H{"error": errorMessage(err), "kind": kind}
	var de *domain.Error
	if errors.As(err, &de) && de.Field != "" {
		body["field"] = de.Field
	}
	c.JSON(status, body)
}

// errorMessage keeps storage and provider internals out of client responses.
func errorMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}
