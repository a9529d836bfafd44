package cancelsubscription

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
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

func (m *MockGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
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

func createTestHandler(t *testing.T, gateway Gateway, subs SubscriptionReader) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, gateway, subs, logger.NewTestLogger(t))
}

func strPtr(s string) *string { return &s }

// ==========================
// Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	gateway := &MockGateway{}
	subs := &MockSubscriptions{}

	subs.On("FindByUserID", mock.Anything, "user-1").
		Return(&models.UserSubscription{UserID: "user-1", StripeSubscriptionID: strPtr("sub_1")}, nil)
	gateway.On("CancelAtPeriodEnd", mock.Anything, "sub_1").Return(nil)

	out, err := createTestHandler(t, gateway, subs).Execute(context.Background(), &Input{UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.Message)
	gateway.AssertExpectations(t)
}

func TestHandler_Execute_NotFound(t *testing.T) {
	tests := []struct {
		name  string
		setup func(subs *MockSubscriptions)
	}{
		{
			name: "no row",
			setup: func(subs *MockSubscriptions) {
				subs.On("FindByUserID", mock.Anything, "user-1").Return(nil, repository.ErrNotFound)
			},
		},
		{
			name: "null subscription id",
			setup: func(subs *MockSubscriptions) {
				subs.On("FindByUserID", mock.Anything, "user-1").Return(&models.UserSubscription{UserID: "user-1"}, nil)
			},
		},
		{
			name: "empty subscription id",
			setup: func(subs *MockSubscriptions) {
				subs.On("FindByUserID", mock.Anything, "user-1").
					Return(&models.UserSubscription{UserID: "user-1", StripeSubscriptionID: strPtr("")}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &MockGateway{}
			subs := &MockSubscriptions{}
			tt.setup(subs)

			_, err := createTestHandler(t, gateway, subs).Execute(context.Background(), &Input{UserID: "user-1"})
			stdErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, "Subscription not found", stdErr.Message)
			assert.Equal(t, 404, errors.HTTPStatus(stdErr.Code))
			gateway.AssertNotCalled(t, "CancelAtPeriodEnd", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Execute_Failures(t *testing.T) {
	t.Run("missing identity", func(t *testing.T) {
		_, err := createTestHandler(t, &MockGateway{}, &MockSubscriptions{}).Execute(context.Background(), &Input{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeUnauthorized))
	})

	t.Run("lookup failure", func(t *testing.T) {
		subs := &MockSubscriptions{}
		subs.On("FindByUserID", mock.Anything, "user-1").Return(nil, stderrors.New("db down"))

		_, err := createTestHandler(t, &MockGateway{}, subs).Execute(context.Background(), &Input{UserID: "user-1"})
		stdErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, 500, errors.HTTPStatus(stdErr.Code))
	})

	t.Run("upstream failure", func(t *testing.T) {
		gateway := &MockGateway{}
		subs := &MockSubscriptions{}
		subs.On("FindByUserID", mock.Anything, "user-1").
			Return(&models.UserSubscription{StripeSubscriptionID: strPtr("sub_1")}, nil)
		gateway.On("CancelAtPeriodEnd", mock.Anything, "sub_1").Return(stderrors.New("resource_missing"))

		_, err := createTestHandler(t, gateway, subs).Execute(context.Background(), &Input{UserID: "user-1"})
		assert.True(t, errors.HasCode(err, errors.ErrCodePaymentsUpstreamFailed))
	})
}
