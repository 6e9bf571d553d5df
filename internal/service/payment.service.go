package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"patient-portal-server/internal/cache"
	"patient-portal-server/internal/domain"
	"patient-portal-server/internal/identity"
	"patient-portal-server/internal/notify"
	"patient-portal-server/internal/provider"
	"patient-portal-server/internal/repo"
)

type InitiateRequest struct {
	Token       string
	UserID      string
	Amount      float64
	Provider    string
	Phone       string
	Currency    string
	Description string
}

type InitiateResult struct {
	PaymentRef  string
	CheckoutURI string
	Status      domain.PaymentStatus
	Message     string
}

type WebhookPayload struct {
	PaymentRef    string
	Status        string
	TransactionID *string
	Amount        *float64
	Currency      *string
}

type PaymentService interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Reconcile(ctx context.Context, payload WebhookPayload) error
	GetStatus(ctx context.Context, paymentRef, userID string) (*domain.Payment, error)
}

type paymentService struct {
	appName         string
	payments        repo.PaymentRepo
	providers       *provider.Registry
	verifier        identity.Verifier
	notifier        *notify.Notifier
	statusCache     *cache.StatusCache
	providerTimeout time.Duration
	log             *logrus.Logger
}

func NewPaymentService(
	appName string,
	payments repo.PaymentRepo,
	providers *provider.Registry,
	verifier identity.Verifier,
	notifier *notify.Notifier,
	statusCache *cache.StatusCache,
	providerTimeout time.Duration,
	log *logrus.Logger,
) PaymentService {
	if providerTimeout <= 0 {
		providerTimeout = 5 * time.Second
	}
	return &paymentService{
		appName:         appName,
		payments:        payments,
		providers:       providers,
		verifier:        verifier,
		notifier:        notifier,
		statusCache:     statusCache,
		providerTimeout: providerTimeout,
		log:             log,
	}
}

func (s *paymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	callerID, err := s.verifier.Verify(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if req.UserID != callerID {
		return nil, domain.NewError(domain.KindForbidden, "users may only initiate payments for themselves")
	}

	if req.Amount <= 0 {
		return nil, domain.InvalidInput("amount", "amount must be a positive number")
	}
	prov, ok := domain.ParseProvider(req.Provider)
	if !ok {
		return nil, domain.InvalidInput("provider", "provider must be one of mtn, orange, airtel")
	}
	if req.Phone == "" {
		return nil, domain.InvalidInput("phone", "phone is required")
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	description := req.Description
	if description == "" {
		description = "Medical tourism payment"
	}

	adapter, ok := s.providers.For(prov)
	if !ok {
		return nil, domain.InvalidInput("provider", "provider is not configured")
	}

	ref := NewReference(s.appName, prov)

	checkoutCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	result, err := adapter.InitiateCheckout(checkoutCtx, provider.CheckoutRequest{
		Reference:   ref,
		Amount:      req.Amount,
		Phone:       req.Phone,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		// No row is written for a failed initiation.
		if domain.KindOf(err) == domain.KindProviderError {
			return nil, err
		}
		return nil, domain.WrapError(domain.KindProviderError, "provider call failed", err)
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:          ref,
		UserID:      callerID,
		Amount:      req.Amount,
		Currency:    currency,
		Provider:    prov,
		Phone:       req.Phone,
		Status:      domain.PaymentPending,
		CheckoutURI: result.CheckoutURI,
		Description: description,
		Metadata:    result.Raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		// The user must never be handed a checkout URI the system cannot
		// later reconcile.
		s.log.WithFields(logrus.Fields{"payment_ref": ref, "error": err}).
			Error("failed to persist payment after checkout initiation")
		return nil, domain.WrapError(domain.KindInternal, "failed to save payment", err)
	}

	s.log.WithFields(logrus.Fields{
		"payment_ref": ref,
		"user_id":     callerID,
		"provider":    prov,
		"amount":      req.Amount,
	}).Info("payment initiated")

	return &InitiateResult{
		PaymentRef:  ref,
		CheckoutURI: result.CheckoutURI,
		Status:      domain.PaymentPending,
		Message:     result.Message,
	}, nil
}

func (s *paymentService) Reconcile(ctx context.Context, payload WebhookPayload) error {
	if payload.PaymentRef == "" {
		return domain.NewError(domain.KindInvalidPayload, "payment_ref is required")
	}
	status := domain.PaymentStatus(payload.Status)
	if !status.Terminal() {
		return domain.NewError(domain.KindInvalidPayload, "status must be one of paid, failed, cancelled")
	}

	payment, err := s.payments.FindByRef(ctx, payload.PaymentRef)
	if err != nil {
		return domain.WrapError(domain.KindInternal, "failed to load payment", err)
	}
	if payment == nil {
		return domain.NewError(domain.KindNotFound, "unknown payment reference")
	}

	// Webhook delivery is at-least-once; a payment already in a terminal
	// state is acknowledged without any mutation.
	if payment.Status.Terminal() {
		return nil
	}

	transitioned, err := s.payments.CompleteTransition(ctx, payment.ID, status, payload.TransactionID, time.Now())
	if err != nil {
		return domain.WrapError(domain.KindInternal, "failed to update payment", err)
	}
	if !transitioned {
		// A concurrent delivery won the compare-and-set; same no-op outcome.
		return nil
	}

	s.log.WithFields(logrus.Fields{
		"payment_ref": payment.ID,
		"status":      status,
	}).Info("payment reconciled")

	if status == domain.PaymentPaid && s.notifier != nil {
		// The user is derived from the stored row, never from the payload.
		s.notifier.PaymentSucceeded(ctx, payment)
	}
	return nil
}

func (s *paymentService) GetStatus(ctx context.Context, paymentRef, userID string) (*domain.Payment, error) {
	if cached := s.statusCache.Get(ctx, paymentRef); cached != nil {
		if cached.UserID != userID {
			return nil, domain.NewError(domain.KindNotFound, "payment not found")
		}
		return cached, nil
	}

	payment, err := s.payments.FindByRefAndUser(ctx, paymentRef, userID)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to load payment", err)
	}
	if payment == nil {
		return nil, domain.NewError(domain.KindNotFound, "payment not found")
	}

	if payment.Status.Terminal() {
		s.statusCache.SetTerminal(ctx, payment)
	}
	return payment, nil
}
