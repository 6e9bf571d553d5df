package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-portal-server/internal/domain"
	"patient-portal-server/internal/identity"
	"patient-portal-server/internal/service"
)

// stubService scripts the payment service so handler tests only exercise
// the HTTP mapping.
type stubService struct {
	initiateResult *service.InitiateResult
	initiateErr    error
	lastInitiate   service.InitiateRequest

	reconcileErr  error
	lastReconcile service.WebhookPayload

	statusResult *domain.Payment
	statusErr    error
	lastRef      string
	lastUserID   string
}

func (s *stubService) Initiate(_ context.Context, req service.InitiateRequest) (*service.InitiateResult, error) {
	s.lastInitiate = req
	return s.initiateResult, s.initiateErr
}

func (s *stubService) Reconcile(_ context.Context, payload service.WebhookPayload) error {
	s.lastReconcile = payload
	return s.reconcileErr
}

func (s *stubService) GetStatus(_ context.Context, ref, userID string) (*domain.Payment, error) {
	s.lastRef, s.lastUserID = ref, userID
	return s.statusResult, s.statusErr
}

// memNotifications is a minimal NotificationRepo for the listing route.
type memNotifications struct {
	items []domain.Notification
}

func (m *memNotifications) Create(_ context.Context, n *domain.Notification) error {
	m.items = append(m.items, *n)
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.items {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) CountByPayment(_ context.Context, paymentRef string) (int, error) {
	count := 0
	for _, n := range m.items {
		if n.PaymentRef == paymentRef {
			count++
		}
	}
	return count, nil
}

func newTestRouter(t *testing.T, svc service.PaymentService, webhookSecret string) *gin.Engine {
	return newTestRouterWithNotifications(t, svc, &memNotifications{}, webhookSecret)
}

func newTestRouterWithNotifications(t *testing.T, svc service.PaymentService, notifications *memNotifications, webhookSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	verifier := identity.NewStaticVerifier(map[string]string{"token-u1": "u1"})
	h := NewHandlers(svc, notifications, webhookSecret, log)

	r := gin.New()
	r.POST("/mobile-money/webhook", h.Webhook)
	r.GET("/mobile-money/status", optionalAuth(verifier), h.Status)
	protected := r.Group("/")
	protected.Use(AuthMiddleware(verifier))
	protected.POST("/mobile-money/pay", h.Pay)
	protected.GET("/notifications", h.Notifications)
	return r
}

func doJSON(r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPayHandler(t *testing.T) {
	svc := &stubService{initiateResult: &service.InitiateResult{
		PaymentRef:  "EMIRAFRIK_MTN_1700000000000_abcd1234",
		CheckoutURI: "mtn://pay?ref=EMIRAFRIK_MTN_1700000000000_abcd1234",
		Status:      domain.PaymentPending,
		Message:     "Payment initiated successfully via MTN Mobile Money",
	}}
	r := newTestRouter(t, svc, "")

	body := `{"userId":"u1","amount":50,"provider":"mtn","phone":"+23761112222","currency":"USD"}`
	w := doJSON(r, http.MethodPost, "/mobile-money/pay", body, "token-u1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "EMIRAFRIK_MTN_1700000000000_abcd1234", resp["payment_ref"])
	assert.Contains(t, resp["checkout_uri"], "mtn://pay?ref=")

	assert.Equal(t, "token-u1", svc.lastInitiate.Token)
	assert.Equal(t, "u1", svc.lastInitiate.UserID)
	assert.Equal(t, 50.0, svc.lastInitiate.Amount)
}

func TestPayHandlerRequiresAuth(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(t, svc, "")

	w := doJSON(r, http.MethodPost, "/mobile-money/pay", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/mobile-money/pay", `{"userId":"u1"}`, "bad-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPayHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid input", domain.InvalidInput("amount", "amount must be a positive number"), http.StatusBadRequest},
		{"forbidden", domain.NewError(domain.KindForbidden, "users may only initiate payments for themselves"), http.StatusForbidden},
		{"provider error", domain.NewError(domain.KindProviderError, "payment failed"), http.StatusInternalServerError},
		{"internal", domain.NewError(domain.KindInternal, "failed to save payment"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{initiateErr: tc.err}
			r := newTestRouter(t, svc, "")

			body := `{"userId":"u1","amount":50,"provider":"mtn","phone":"+237"}`
			w := doJSON(r, http.MethodPost, "/mobile-money/pay", body, "token-u1")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestWebhookHandler(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(t, svc, "")

	body := `{"payment_ref":"REF1","status":"paid","transaction_id":"TXN123"}`
	w := doJSON(r, http.MethodPost, "/mobile-money/webhook", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	assert.Equal(t, "REF1", svc.lastReconcile.PaymentRef)
	assert.Equal(t, "paid", svc.lastReconcile.Status)
	require.NotNil(t, svc.lastReconcile.TransactionID)
	assert.Equal(t, "TXN123", *svc.lastReconcile.TransactionID)
}

func TestWebhookHandlerBadPayload(t *testing.T) {
	svc := &stubService{reconcileErr: domain.NewError(domain.KindInvalidPayload, "status must be one of paid, failed, cancelled")}
	r := newTestRouter(t, svc, "")

	w := doJSON(r, http.MethodPost, "/mobile-money/webhook", `{"payment_ref":"REF1","status":"shrug"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/mobile-money/webhook", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookSharedSecret(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(t, svc, "s3cret")

	body := `{"payment_ref":"REF1","status":"paid"}`
	w := doJSON(r, http.MethodPost, "/mobile-money/webhook", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/mobile-money/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusHandler(t *testing.T) {
	paidAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	txn := "TXN123"
	svc := &stubService{statusResult: &domain.Payment{
		ID:            "REF1",
		UserID:        "u1",
		Amount:        50,
		Currency:      "USD",
		Provider:      domain.ProviderMTN,
		Status:        domain.PaymentPaid,
		TransactionID: &txn,
		CreatedAt:     paidAt.Add(-time.Hour),
		PaidAt:        &paidAt,
	}}
	r := newTestRouter(t, svc, "")

	w := doJSON(r, http.MethodGet, "/mobile-money/status?payment_ref=REF1&user_id=u1", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "paid", resp["status"])
	assert.Equal(t, "REF1", resp["payment_ref"])
	assert.Equal(t, "TXN123", resp["transaction_id"])
	assert.Equal(t, "2024-06-01T12:00:00Z", resp["paid_at"])

	assert.Equal(t, "REF1", svc.lastRef)
	assert.Equal(t, "u1", svc.lastUserID)
}

func TestStatusHandlerTokenOverridesQueryUser(t *testing.T) {
	svc := &stubService{statusErr: domain.NewError(domain.KindNotFound, "payment not found")}
	r := newTestRouter(t, svc, "")

	w := doJSON(r, http.MethodGet, "/mobile-money/status?payment_ref=REF1&user_id=u2", "", "token-u1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "u1", svc.lastUserID, "token identity wins over the query parameter")
}

func TestStatusHandlerMissingParams(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(t, svc, "")

	w := doJSON(r, http.MethodGet, "/mobile-money/status?payment_ref=REF1", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/mobile-money/status?user_id=u1", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationsHandler(t *testing.T) {
	notifications := &memNotifications{items: []domain.Notification{
		{UserID: "u1", Type: domain.NotificationTypePayment, Title: "Payment Successful", PaymentRef: "REF1"},
		{UserID: "u2", Type: domain.NotificationTypePayment, Title: "Payment Successful", PaymentRef: "REF2"},
	}}
	r := newTestRouterWithNotifications(t, &stubService{}, notifications, "")

	w := doJSON(r, http.MethodGet, "/notifications", "", "token-u1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1, "only the caller's notifications are returned")
	assert.Equal(t, "REF1", resp.Notifications[0].PaymentRef)

	w = doJSON(r, http.MethodGet, "/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusHandlerNotFound(t *testing.T) {
	svc := &stubService{statusErr: domain.NewError(domain.KindNotFound, "payment not found")}
	r := newTestRouter(t, svc, "")

	w := doJSON(r, http.MethodGet, "/mobile-money/status?payment_ref=REF1&user_id=u2", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
