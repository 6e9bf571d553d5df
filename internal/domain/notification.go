package domain

import "time"

const NotificationTypePayment = "payment"

// Notification is written by the reconciler when a payment succeeds and
// served back on the notifications route.
type Notification struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	PaymentRef string    `json:"payment_ref"`
	CreatedAt  time.Time `json:"created_at"`
}
