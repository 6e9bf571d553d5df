package domain

import (
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether no further status transition is permitted.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

type Provider string

const (
	ProviderMTN    Provider = "mtn"
	ProviderOrange Provider = "orange"
	ProviderAirtel Provider = "airtel"
)

func ParseProvider(s string) (Provider, bool) {
	switch Provider(s) {
	case ProviderMTN, ProviderOrange, ProviderAirtel:
		return Provider(s), true
	}
	return "", false
}

// Payment is the sole persisted payment entity. The reference (ID) doubles
// as the idempotency key for webhook reconciliation.
type Payment struct {
	ID            string
	UserID        string
	Amount        float64
	Currency      string
	Provider      Provider
	Phone         string
	Status        PaymentStatus
	CheckoutURI   string
	TransactionID *string
	Description   string
	Metadata      map[string]any
	CreatedAt     time.Time
	PaidAt        *time.Time
	UpdatedAt     time.Time
}
