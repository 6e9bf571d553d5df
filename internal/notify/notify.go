package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"patient-portal-server/internal/domain"
	"patient-portal-server/internal/repo"
)

// PushTokenLookup resolves a user's push token, if any. Returning an empty
// token skips the push. nil disables push delivery entirely.
type PushTokenLookup func(ctx context.Context, userID string) (string, error)

type pushMessage struct {
	To    string         `json:"to"`
	Sound string         `json:"sound"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Notifier records payment notifications and fires push messages. Delivery
// is fire-and-forget: a failure here never rolls back a payment status.
type Notifier struct {
	notifications repo.NotificationRepo
	lookup        PushTokenLookup
	endpoint      string
	client        *http.Client
	log           *logrus.Logger
}

func New(notifications repo.NotificationRepo, lookup PushTokenLookup, endpoint string, log *logrus.Logger) *Notifier {
	return &Notifier{
		notifications: notifications,
		lookup:        lookup,
		endpoint:      endpoint,
		client:        &http.Client{Timeout: 10 * time.Second},
		log:           log,
	}
}

// PaymentSucceeded records exactly one success notification for the payment
// and pushes it to the user's device when a push token is registered.
func (n *Notifier) PaymentSucceeded(ctx context.Context, p *domain.Payment) {
	notification := &domain.Notification{
		UserID:     p.UserID,
		Type:       domain.NotificationTypePayment,
		Title:      "Payment Successful",
		Message:    fmt.Sprintf("Your payment of %.2f %s was successful.", p.Amount, p.Currency),
		PaymentRef: p.ID,
		CreatedAt:  time.Now(),
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		n.log.WithFields(logrus.Fields{"payment_ref": p.ID, "error": err}).
			Warn("failed to record payment notification")
		return
	}

	n.push(ctx, p, notification)
}

func (n *Notifier) push(ctx context.Context, p *domain.Payment, notification *domain.Notification) {
	if n.lookup == nil {
		return
	}
	token, err := n.lookup(ctx, p.UserID)
	if err != nil {
		n.log.WithFields(logrus.Fields{"user_id": p.UserID, "error": err}).
			Warn("failed to look up push token")
		return
	}
	if token == "" {
		return
	}

	body, err := json.Marshal(pushMessage{
		To:    token,
		Sound: "default",
		Title: notification.Title,
		Body:  notification.Message,
		Data:  map[string]any{"payment_ref": p.ID},
	})
	if err != nil {
		n.log.WithError(err).Warn("failed to marshal push message")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(body))
	if err != nil {
		n.log.WithError(err).Warn("failed to build push request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.WithError(err).Warn("failed to send push notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.log.WithField("status", resp.StatusCode).Warn("push notification service returned an error")
	}
}
