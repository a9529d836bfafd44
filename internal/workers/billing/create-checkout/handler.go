// internal/workers/billing/create-checkout/handler.go
package createcheckout

import (
	"context"
	stderrors "errors"
	"strings"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/common/stripe"
	"entitlement-service/internal/models"
	"entitlement-service/internal/repository"
	"entitlement-service/pkg/plans"
)

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (string, error)
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
		logger:        log.WithFields(map[string]interface{}{"worker": "create-checkout"}),
	}
}

// Execute starts a hosted subscription checkout for a catalog plan key.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.NewUnauthorizedError("checkout requires a signed-in user")
	}

	plan, product, ok := plans.CheckoutPlan(input.PlanKey)
	if !ok {
		return nil, errors.NewInvalidPlanError(input.PlanKey)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	req := stripe.CheckoutRequest{
		UserID:      userID,
		PlanName:    plan.String(),
		PlanKey:     input.PlanKey,
		CustomerID:  h.existingCustomer(ctx, userID),
		PriceID:     h.config.PriceIDs[input.PlanKey],
		ProductName: product.Name,
		UnitAmount:  product.UnitAmount,
		Currency:    product.Currency,
		Interval:    product.Interval,
		SuccessURL:  h.config.successURL(),
		CancelURL:   h.config.cancelURL(),
	}

	url, err := h.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		h.logger.Error("checkout session creation failed", map[string]interface{}{
			"userId": userID,
			"plan":   input.PlanKey,
			"error":  err.Error(),
		})
		return nil, errors.NewPaymentsUpstreamError("create checkout session", err)
	}

	h.logger.Info("checkout session created", map[string]interface{}{
		"userId":   userID,
		"plan":     input.PlanKey,
		"customer": req.CustomerID != "",
	})
	return &Output{URL: url}, nil
}

// existingCustomer reuses the stored payments customer. Lookup failures only cost a new customer.
func (h *Handler) existingCustomer(ctx context.Context, userID string) string {
	sub, err := h.subscriptions.FindByUserID(ctx, userID)
	if err != nil {
		if !stderrors.Is(err, repository.ErrNotFound) {
			h.logger.Warn("customer lookup failed, continuing without customer", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
		return ""
	}
	return sub.StripeCustomerID
}
