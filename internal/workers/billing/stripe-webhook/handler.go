// internal/workers/billing/stripe-webhook/handler.go
package stripewebhook

import (
	"context"
	stderrors "errors"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/common/metrics"
	"entitlement-service/internal/common/stripe"
	"entitlement-service/internal/models"
	"entitlement-service/internal/repository"
	reconcilesubscriptions "entitlement-service/internal/workers/billing/reconcile-subscriptions"
	"entitlement-service/pkg/plans"
)

type SubscriptionStore interface {
	FindByCustomer(ctx context.Context, customerID string) (*models.UserSubscription, error)
	Activate(ctx context.Context, a models.SubscriptionActivation) error
}

type PlanApplier interface {
	Apply(ctx context.Context, userID string, plan plans.Plan) error
}

type Downgrader interface {
	Downgrade(ctx context.Context, userID string, sub stripe.RemoteSubscription, trigger string) error
}

type Handler struct {
	config     *Config
	store      SubscriptionStore
	applier    PlanApplier
	downgrader Downgrader
	logger     logger.Logger
}

func NewHandler(config *Config, store SubscriptionStore, applier PlanApplier, downgrader Downgrader, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		store:      store,
		applier:    applier,
		downgrader: downgrader,
		logger:     log.WithFields(map[string]interface{}{"worker": "stripe-webhook"}),
	}
}

// Execute verifies and dispatches one delivery. A returned error makes the
// provider redeliver, so only transient persistence failures are surfaced.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if h.config.WebhookSecret == "" {
		return nil, errors.NewWebhookNotConfiguredError()
	}

	event, err := stripe.VerifyEvent(input.Payload, input.Signature, h.config.WebhookSecret)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", outcomeRejected).Inc()
		h.logger.Warn("webhook signature rejected", map[string]interface{}{"error": err.Error()})
		return nil, errors.NewWebhookSignatureError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	log := h.logger.WithFields(map[string]interface{}{"eventId": event.ID, "eventType": event.Type})

	var handled bool
	switch event.Type {
	case stripe.EventCheckoutCompleted:
		handled, err = h.checkoutCompleted(ctx, event, log)
	case stripe.EventSubscriptionUpdated, stripe.EventSubscriptionDeleted:
		handled, err = h.subscriptionChanged(ctx, event, log)
	default:
		log.Debug("ignoring webhook event", nil)
	}

	outcome := outcomeIgnored
	switch {
	case err != nil:
		outcome = outcomeFailed
	case handled:
		outcome = outcomeHandled
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, outcome).Inc()

	if err != nil {
		return nil, err
	}
	return &Output{Received: true, Type: event.Type, Handled: handled}, nil
}

func (h *Handler) checkoutCompleted(ctx context.Context, event *stripe.Event, log logger.Logger) (bool, error) {
	session, err := stripe.DecodeCheckout(event.Raw)
	if err != nil {
		log.Warn("malformed checkout session", map[string]interface{}{"error": err.Error()})
		return false, nil
	}

	userID := session.UserID()
	plan := plans.Parse(session.Metadata["plan"])
	fields := map[string]interface{}{
		"userId":     userID,
		"customerId": session.Customer,
		"plan":       plan.String(),
	}

	if userID == "" || !plan.Known() || plan == plans.Freemium {
		log.Warn("checkout session without a paid plan or user", fields)
		return false, nil
	}

	activation := models.SubscriptionActivation{
		UserID:               userID,
		Plan:                 plan,
		StripeCustomerID:     session.Customer,
		StripeSubscriptionID: session.Subscription,
		StripePriceID:        h.priceID(plan),
	}
	if err := h.store.Activate(ctx, activation); err != nil {
		fields["error"] = err.Error()
		log.Error("failed to activate subscription", fields)
		return false, errors.NewQueryExecutionFailedError("activate user_subscription", err)
	}

	if err := h.applier.Apply(ctx, userID, plan); err != nil {
		fields["error"] = err.Error()
		log.Error("failed to apply plan after checkout", fields)
		return false, err
	}

	log.Info("subscription activated", fields)
	return true, nil
}

func (h *Handler) subscriptionChanged(ctx context.Context, event *stripe.Event, log logger.Logger) (bool, error) {
	sub, err := stripe.DecodeSubscription(event.Raw)
	if err != nil {
		log.Warn("malformed subscription payload", map[string]interface{}{"error": err.Error()})
		return false, nil
	}

	if event.Type == stripe.EventSubscriptionUpdated && plans.IsHealthyStatus(sub.Status) {
		return false, nil
	}

	fields := map[string]interface{}{
		"subscriptionId": sub.ID,
		"customerId":     sub.CustomerID,
		"status":         sub.Status,
	}
	if sub.CustomerID == "" {
		log.Warn("subscription event without customer", fields)
		return false, nil
	}

	local, err := h.store.FindByCustomer(ctx, sub.CustomerID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			log.Warn("no local user for customer", fields)
			return false, nil
		}
		fields["error"] = err.Error()
		log.Error("customer lookup failed", fields)
		return false, errors.NewQueryExecutionFailedError("lookup customer", err)
	}

	// A customer that re-subscribed keeps the newer subscription id locally;
	// events for the replaced subscription must not touch it.
	if local.StripeSubscriptionID != nil && *local.StripeSubscriptionID != "" && *local.StripeSubscriptionID != sub.ID {
		fields["currentSubscriptionId"] = *local.StripeSubscriptionID
		log.Info("ignoring event for superseded subscription", fields)
		return false, nil
	}

	if err := h.downgrader.Downgrade(ctx, local.UserID, *sub, reconcilesubscriptions.TriggerWebhook); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Handler) priceID(plan plans.Plan) string {
	key := plans.CheckoutKey(plan)
	if id := h.config.PriceIDs[key]; id != "" {
		return id
	}
	return key
}
