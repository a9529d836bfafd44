// internal/workers/billing/subscription-status/handler.go
package subscriptionstatus

import (
	"context"
	stderrors "errors"
	"strings"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/models"
	"entitlement-service/internal/repository"
	"entitlement-service/pkg/plans"
)

type SubscriptionReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserSubscription, error)
}

type LimitsReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserLimits, error)
}

type Handler struct {
	config        *Config
	subscriptions SubscriptionReader
	limits        LimitsReader
	cache         *Cache
	logger        logger.Logger
}

// NewHandler builds the status reader. cache may be nil.
func NewHandler(config *Config, subscriptions SubscriptionReader, limits LimitsReader, cache *Cache, log logger.Logger) *Handler {
	return &Handler{
		config:        config,
		subscriptions: subscriptions,
		limits:        limits,
		cache:         cache,
		logger:        log.WithFields(map[string]interface{}{"worker": "subscription-status"}),
	}
}

// FreemiumDefaults is returned when a user has no limits row or it cannot be read.
func FreemiumDefaults() *Output {
	limits, _ := plans.LimitsFor(plans.Freemium)
	return &Output{Plan: plans.Freemium.String(), Limit: limits.DailyGenerations, Used: 0}
}

// Execute never fails for an identified caller; read failures fall back to Freemium defaults.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.NewUnauthorizedError("status requires a signed-in user")
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	if h.cache != nil {
		cached, ok, err := h.cache.Get(ctx, userID)
		if err != nil {
			h.logger.Warn("status cache read failed", map[string]interface{}{"userId": userID, "error": err.Error()})
		} else if ok {
			return cached, nil
		}
	}

	out, complete := h.read(ctx, userID)

	if complete && h.cache != nil {
		if err := h.cache.Set(ctx, userID, out); err != nil {
			h.logger.Warn("status cache write failed", map[string]interface{}{"userId": userID, "error": err.Error()})
		}
	}
	return out, nil
}

// read reports complete=false when a store failed, so the fallback is not cached.
func (h *Handler) read(ctx context.Context, userID string) (*Output, bool) {
	out := FreemiumDefaults()
	complete := true

	limits, err := h.limits.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		out.Plan = limits.Plan
		out.Limit = limits.DailyLimit
		out.Used = limits.UsedToday
	case stderrors.Is(err, repository.ErrNotFound):
	default:
		complete = false
		h.logger.Warn("limits read failed, using Freemium defaults", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}

	sub, err := h.subscriptions.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		out.StripeStatus = sub.Status
	case stderrors.Is(err, repository.ErrNotFound):
	default:
		complete = false
		h.logger.Warn("subscription read failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}

	return out, complete
}
