package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"entitlement-service/internal/common/auth"
	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/models"
	loguseraction "entitlement-service/internal/workers/audit/log-user-action"
	cancelsubscription "entitlement-service/internal/workers/billing/cancel-subscription"
	createcheckout "entitlement-service/internal/workers/billing/create-checkout"
	reconcilesubscriptions "entitlement-service/internal/workers/billing/reconcile-subscriptions"
	stripewebhook "entitlement-service/internal/workers/billing/stripe-webhook"
	subscriptionstatus "entitlement-service/internal/workers/billing/subscription-status"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// ==========================
// Mock Implementations
// ==========================

type tokenResolver struct{}

func (tokenResolver) Resolve(_ context.Context, token string) (*models.Identity, error) {
	if token == "good" {
		return &models.Identity{UserID: "user-1"}, nil
	}
	return nil, auth.ErrInvalidToken
}

type MockReconciler struct{ mock.Mock }

func (m *MockReconciler) Reconcile(ctx context.Context, trigger string) (*reconcilesubscriptions.Report, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcilesubscriptions.Report), args.Error(1)
}

type MockCanceller struct{ mock.Mock }

func (m *MockCanceller) Execute(ctx context.Context, input *cancelsubscription.Input) (*cancelsubscription.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cancelsubscription.Output), args.Error(1)
}

type MockCheckout struct{ mock.Mock }

func (m *MockCheckout) Execute(ctx context.Context, input *createcheckout.Input) (*createcheckout.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*createcheckout.Output), args.Error(1)
}

type MockStatus struct{ mock.Mock }

func (m *MockStatus) Execute(ctx context.Context, input *subscriptionstatus.Input) (*subscriptionstatus.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscriptionstatus.Output), args.Error(1)
}

type MockActions struct{ mock.Mock }

func (m *MockActions) Log(ctx context.Context, userID, action string, metadata json.RawMessage) *loguseraction.LogError {
	args := m.Called(ctx, userID, action, metadata)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*loguseraction.LogError)
}

type MockWebhook struct{ mock.Mock }

func (m *MockWebhook) Execute(ctx context.Context, input *stripewebhook.Input) (*stripewebhook.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripewebhook.Output), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

type fixture struct {
	reconciler *MockReconciler
	canceller  *MockCanceller
	checkout   *MockCheckout
	status     *MockStatus
	actions    *MockActions
	webhook    *MockWebhook
	router     *gin.Engine
}

func newFixture(t *testing.T, opts Options, checkers map[string]Checker) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		reconciler: &MockReconciler{},
		canceller:  &MockCanceller{},
		checkout:   &MockCheckout{},
		status:     &MockStatus{},
		actions:    &MockActions{},
		webhook:    &MockWebhook{},
	}
	server := NewServer(opts, Services{
		Resolver:   tokenResolver{},
		Reconciler: f.reconciler,
		Canceller:  f.canceller,
		Checkout:   f.checkout,
		Status:     f.status,
		Actions:    f.actions,
		Webhook:    f.webhook,
		Checkers:   checkers,
	}, logger.NewTestLogger(t))
	f.router = server.Router()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func withCookie(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: "good"})
	return req
}

// ==========================
// Reconcile Route Tests
// ==========================

func TestReconcileRoute(t *testing.T) {
	f := newFixture(t, Options{CronSecret: "cron"}, nil)
	f.reconciler.On("Reconcile", mock.Anything, reconcilesubscriptions.TriggerHTTP).
		Return(&reconcilesubscriptions.Report{Pages: 2, Scanned: 150, Downgraded: 3}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/subscriptions/reconcile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/reconcile", nil)
	req.Header.Set("X-Cron-Secret", "cron")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                           `json:"success"`
		Report  reconcilesubscriptions.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 150, body.Report.Scanned)
	assert.Equal(t, 3, body.Report.Downgraded)
}

func TestReconcileRoute_Aborted(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.reconciler.On("Reconcile", mock.Anything, reconcilesubscriptions.TriggerHTTP).
		Return(&reconcilesubscriptions.Report{Pages: 1, Scanned: 100, Downgraded: 2},
			errors.NewReconcileAbortedError(2, stderrors.New("rate limited")))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/subscriptions/reconcile", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Error  string                         `json:"error"`
		Report *reconcilesubscriptions.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	require.NotNil(t, body.Report)
	assert.Equal(t, 1, body.Report.Pages)
	assert.Equal(t, 2, body.Report.Downgraded)
}

func TestReconcileRoute_FailedWithoutReport(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.reconciler.On("Reconcile", mock.Anything, reconcilesubscriptions.TriggerHTTP).
		Return(nil, errors.NewInternalError(stderrors.New("boom")))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/subscriptions/reconcile", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"report"`)
}

func TestReconcileRoute_OutlivesServerWriteTimeout(t *testing.T) {
	f := newFixture(t, Options{CronSecret: "cron", ReconcileTimeout: 2 * time.Second}, nil)
	f.reconciler.On("Reconcile", mock.Anything, reconcilesubscriptions.TriggerHTTP).
		Run(func(mock.Arguments) { time.Sleep(300 * time.Millisecond) }).
		Return(&reconcilesubscriptions.Report{Pages: 1, Scanned: 10}, nil)

	srv := httptest.NewUnstartedServer(f.router)
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/subscriptions/reconcile", nil)
	require.NoError(t, err)
	req.Header.Set("X-Cron-Secret", "cron")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                          `json:"success"`
		Report  reconcilesubscriptions.Report `json:"report"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 10, body.Report.Scanned)
}

// ==========================
// Cancel Route Tests
// ==========================

func TestCancelRoute(t *testing.T) {
	tests := []struct {
		name       string
		auth       string
		setup      func(f *fixture)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no token",
			setup:      func(f *fixture) {},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Unauthorized"}`,
		},
		{
			name: "success",
			auth: "Bearer good",
			setup: func(f *fixture) {
				f.canceller.On("Execute", mock.Anything, &cancelsubscription.Input{UserID: "user-1"}).
					Return(&cancelsubscription.Output{Success: true, Message: "ok"}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"message":"ok"}`,
		},
		{
			name: "not found",
			auth: "Bearer good",
			setup: func(f *fixture) {
				f.canceller.On("Execute", mock.Anything, mock.Anything).
					Return(nil, errors.NewSubscriptionNotFoundError("user-1"))
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"Subscription not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{}, nil)
			tt.setup(f)

			req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/cancel", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := f.do(req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

// ==========================
// Checkout Route Tests
// ==========================

func TestCheckoutRoute(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.checkout.On("Execute", mock.Anything, &createcheckout.Input{UserID: "user-1", PlanKey: "smarter"}).
		Return(&createcheckout.Output{URL: "https://checkout.example/s/1"}, nil)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"plan":"smarter"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(withCookie(httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid plan"}`, rec.Body.String())

	rec = f.do(withCookie(httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"plan":"smarter"}`))))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.example/s/1"}`, rec.Body.String())
}

func TestCheckoutRoute_OversizedBody(t *testing.T) {
	f := newFixture(t, Options{}, nil)

	body := `{"plan":"smarter","note":"` + strings.Repeat("x", maxRequestBody) + `"}`
	rec := f.do(withCookie(httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	f.checkout.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

// ==========================
// Status Route Tests
// ==========================

func TestStatusRoute(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.status.On("Execute", mock.Anything, &subscriptionstatus.Input{UserID: "user-1"}).
		Return(&subscriptionstatus.Output{Plan: "Freemium", Limit: 5, Used: 0}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/subscriptions/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/subscriptions/status", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"plan":"Freemium","limit":5,"used":0}`, rec.Body.String())
}

// ==========================
// User Action Route Tests
// ==========================

func TestUserActionRoute(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.actions.On("Log", mock.Anything, "user-1", "export_clicked", json.RawMessage(`{"page":"pricing"}`)).
		Return(&loguseraction.LogError{Sink: "database", Err: stderrors.New("down")})

	bodies := []string{
		`{"userId":"user-1","action":"export_clicked","metadata":{"page":"pricing"}}`,
		`not json`,
		`{"userId":42}`,
	}
	for _, body := range bodies {
		rec := f.do(httptest.NewRequest(http.MethodPost, "/api/user-action", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	}
	f.actions.AssertNumberOfCalls(t, "Log", 1)
}

func TestUserActionRoute_OversizedBody(t *testing.T) {
	f := newFixture(t, Options{}, nil)

	body := `{"userId":"user-1","action":"export_clicked","metadata":{"blob":"` + strings.Repeat("x", maxRequestBody) + `"}}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/user-action", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	f.actions.AssertNotCalled(t, "Log", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserActionRoute_Throttled(t *testing.T) {
	f := newFixture(t, Options{RateLimit: rate.Limit(0.001), RateBurst: 1}, nil)
	f.actions.On("Log", mock.Anything, "user-1", "login", mock.Anything).Return(nil)

	for i := 0; i < 3; i++ {
		rec := f.do(httptest.NewRequest(http.MethodPost, "/api/user-action", strings.NewReader(`{"userId":"user-1","action":"login"}`)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	f.actions.AssertNumberOfCalls(t, "Log", 1)
}

// ==========================
// Webhook Route Tests
// ==========================

func TestWebhookRoute(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.webhook.On("Execute", mock.Anything, mock.MatchedBy(func(in *stripewebhook.Input) bool {
		return in.Signature == "t=1,v1=good"
	})).Return(&stripewebhook.Output{Received: true, Type: "invoice.paid"}, nil)
	f.webhook.On("Execute", mock.Anything, mock.Anything).
		Return(nil, errors.NewWebhookSignatureError(stderrors.New("no valid signature")))

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=good")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rec = f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Probe Tests
// ==========================

func TestProbes(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	failing := func(context.Context) error { return stderrors.New("connection refused") }

	f := newFixture(t, Options{}, map[string]Checker{"postgres": healthy})
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	f = newFixture(t, Options{}, map[string]Checker{"postgres": healthy, "redis": failing})
	rec = f.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestIPLimiter_Disabled(t *testing.T) {
	l := newIPLimiter(0, 0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("192.0.2.1"))
	}
}
