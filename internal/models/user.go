// internal/models/user.go
package models

import (
	"time"

	"entitlement-service/pkg/plans"
)

// Subscription statuses written locally. Remote statuses are stored verbatim.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusCanceled = "canceled"
)

// UserSubscription mirrors a row of user_subscription. Rows are never deleted.
type UserSubscription struct {
	UserID               string     `json:"userId" db:"user_id"`
	Plan                 string     `json:"plan" db:"plan"`
	PackageType          string     `json:"packageType" db:"package_type"`
	Status               string     `json:"status" db:"status"`
	StripeSubscriptionID *string    `json:"stripeSubscriptionId,omitempty" db:"stripe_subscription_id"`
	StripePriceID        *string    `json:"stripePriceId,omitempty" db:"stripe_price_id"`
	StripeCustomerID     string     `json:"stripeCustomerId" db:"stripe_customer_id"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty" db:"current_period_end"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" db:"updated_at"`
}

// PlanValue parses the stored plan identifier.
func (s *UserSubscription) PlanValue() plans.Plan {
	return plans.Parse(s.Plan)
}

// HasRemoteSubscription reports whether a payments-side subscription is attached.
func (s *UserSubscription) HasRemoteSubscription() bool {
	return s.StripeSubscriptionID != nil && *s.StripeSubscriptionID != ""
}

// Downgrade is the set of column values written when a user loses paid access.
type Downgrade struct {
	Status        string
	Plan          plans.Plan
	StripePriceID string
}

// FreemiumDowngrade returns the values written for a lapsed subscription.
func FreemiumDowngrade() Downgrade {
	return Downgrade{
		Status:        StatusCanceled,
		Plan:          plans.Freemium,
		StripePriceID: plans.FreemiumPriceID,
	}
}

// SubscriptionActivation is written when a checkout completes.
type SubscriptionActivation struct {
	UserID               string
	Plan                 plans.Plan
	StripeCustomerID     string
	StripeSubscriptionID string
	StripePriceID        string
	CurrentPeriodEnd     *time.Time
}
