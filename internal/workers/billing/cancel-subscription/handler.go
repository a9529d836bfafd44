// internal/workers/billing/cancel-subscription/handler.go
package cancelsubscription

import (
	"context"
	stderrors "errors"
	"strings"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/models"
	"entitlement-service/internal/repository"
)

const successMessage = "Subscription will be canceled at the end of the current billing period"

type Gateway interface {
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

type SubscriptionReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserSubscription, error)
}

type Handler struct {
	config        *Config
	gateway       Gateway
	subscriptions SubscriptionReader
	logger        logger.Logger
}

func NewHandler(config *Config, gateway Gateway, subscriptions SubscriptionReader, log logger.Logger) *Handler {
	return &Handler{
		config:        config,
		gateway:       gateway,
		subscriptions: subscriptions,
		logger:        log.WithFields(map[string]interface{}{"worker": "cancel-subscription"}),
	}
}

// Execute requests end-of-period cancellation. It never cancels immediately.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.NewUnauthorizedError("cancellation requires a signed-in user")
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	sub, err := h.subscriptions.FindByUserID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewSubscriptionNotFoundError(userID)
		}
		h.logger.Error("subscription lookup failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, errors.NewQueryExecutionFailedError("find user_subscription", err)
	}
	if !sub.HasRemoteSubscription() {
		return nil, errors.NewSubscriptionNotFoundError(userID)
	}

	if err := h.gateway.CancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID); err != nil {
		h.logger.Error("cancel at period end failed", map[string]interface{}{
			"userId":         userID,
			"subscriptionId": *sub.StripeSubscriptionID,
			"error":          err.Error(),
		})
		return nil, errors.NewPaymentsUpstreamError("cancel subscription", err)
	}

	h.logger.Info("subscription set to cancel at period end", map[string]interface{}{
		"userId":         userID,
		"subscriptionId": *sub.StripeSubscriptionID,
	})
	return &Output{Success: true, Message: successMessage}, nil
}
