package createcheckout

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/common/stripe"
	"entitlement-service/internal/models"
	"entitlement-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockSubscriptions struct {
	mock.Mock
}

func (m *MockSubscriptions) FindByUserID(ctx context.Context, userID string) (*models.UserSubscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserSubscription), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, gateway Gateway, subs SubscriptionReader, priceIDs map[string]string) *Handler {
	cfg := &Config{
		Timeout:     5 * time.Second,
		FrontendURL: "https://app.example.com",
		PriceIDs:    priceIDs,
	}
	return NewHandler(cfg, gateway, subs, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	gateway := &MockGateway{}
	subs := &MockSubscriptions{}

	subs.On("FindByUserID", mock.Anything, "user-1").Return(nil, repository.ErrNotFound)
	gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req stripe.CheckoutRequest) bool {
		return req.UserID == "user-1" &&
			req.PlanName == "Smarter" &&
			req.PriceID == "" &&
			req.CustomerID == "" &&
			req.UnitAmount == 100 &&
			req.Interval == "month" &&
			req.SuccessURL == "https://app.example.com/dashboard?checkout=success&session_id={CHECKOUT_SESSION_ID}" &&
			req.CancelURL == "https://app.example.com/pricing?checkout=cancelled"
	})).Return("https://checkout.stripe.com/c/pay/cs_1", nil)

	out, err := createTestHandler(t, gateway, subs, nil).Execute(context.Background(), &Input{UserID: "user-1", PlanKey: "smarter"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", out.URL)
	gateway.AssertExpectations(t)
}

func TestHandler_Execute_ReusesCustomerAndConfiguredPrice(t *testing.T) {
	gateway := &MockGateway{}
	subs := &MockSubscriptions{}

	subs.On("FindByUserID", mock.Anything, "user-1").Return(&models.UserSubscription{StripeCustomerID: "cus_1"}, nil)
	gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req stripe.CheckoutRequest) bool {
		return req.CustomerID == "cus_1" && req.PriceID == "price_business" && req.PlanName == "Business"
	})).Return("https://checkout.stripe.com/c/pay/cs_2", nil)

	h := createTestHandler(t, gateway, subs, map[string]string{"business": "price_business"})
	_, err := h.Execute(context.Background(), &Input{UserID: "user-1", PlanKey: "business"})
	require.NoError(t, err)
	gateway.AssertExpectations(t)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_InvalidPlan(t *testing.T) {
	gateway := &MockGateway{}
	subs := &MockSubscriptions{}

	for _, key := range []string{"enterprise", "Smarter", "", "freemium"} {
		_, err := createTestHandler(t, gateway, subs, nil).Execute(context.Background(), &Input{UserID: "user-1", PlanKey: key})
		stdErr, ok := errors.As(err)
		require.True(t, ok, key)
		assert.Equal(t, errors.ErrCodeInvalidPlan, stdErr.Code)
		assert.Equal(t, "Invalid plan", stdErr.Message)
		assert.Equal(t, 400, errors.HTTPStatus(stdErr.Code))
	}
	gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestHandler_Execute_MissingIdentity(t *testing.T) {
	gateway := &MockGateway{}
	subs := &MockSubscriptions{}

	_, err := createTestHandler(t, gateway, subs, nil).Execute(context.Background(), &Input{PlanKey: "smarter"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnauthorized))
	subs.AssertNotCalled(t, "FindByUserID", mock.Anything, mock.Anything)
	gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestHandler_Execute_UpstreamFailure(t *testing.T) {
	gateway := &MockGateway{}
	subs := &MockSubscriptions{}

	subs.On("FindByUserID", mock.Anything, "user-1").Return(nil, stderrors.New("db down"))
	gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return("", stderrors.New("card_declined"))

	_, err := createTestHandler(t, gateway, subs, nil).Execute(context.Background(), &Input{UserID: "user-1", PlanKey: "smarter"})
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodePaymentsUpstreamFailed, stdErr.Code)
	assert.Equal(t, 500, errors.HTTPStatus(stdErr.Code))
}
