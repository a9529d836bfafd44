// internal/repository/subscriptions.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entitlement-service/internal/models"

	"github.com/Masterminds/squirrel"
)

const subscriptionTable = "user_subscription"

var subscriptionColumns = []string{
	"user_id", "plan", "package_type", "status", "stripe_subscription_id",
	"stripe_price_id", "stripe_customer_id", "current_period_end", "created_at", "updated_at",
}

// SubscriptionStore reads and writes user_subscription.
type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// FindByUserID returns the subscription row for a user or ErrNotFound.
func (s *SubscriptionStore) FindByUserID(ctx context.Context, userID string) (*models.UserSubscription, error) {
	return s.findOne(ctx, squirrel.Eq{"user_id": userID}, userID)
}

// FindByCustomer returns the row owning a payments customer id or ErrNotFound.
func (s *SubscriptionStore) FindByCustomer(ctx context.Context, customerID string) (*models.UserSubscription, error) {
	return s.findOne(ctx, squirrel.Eq{"stripe_customer_id": customerID}, customerID)
}

func (s *SubscriptionStore) findOne(ctx context.Context, where squirrel.Eq, key string) (*models.UserSubscription, error) {
	query, args, err := psql.Select(subscriptionColumns...).
		From(subscriptionTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build subscription query: %w", err)
	}

	var (
		sub        models.UserSubscription
		subID      sql.NullString
		priceID    sql.NullString
		customerID sql.NullString
		periodEnd  sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&sub.UserID, &sub.Plan, &sub.PackageType, &sub.Status, &subID,
		&priceID, &customerID, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load subscription for %s: %w", key, err)
	}

	if subID.Valid {
		sub.StripeSubscriptionID = &subID.String
	}
	if priceID.Valid {
		sub.StripePriceID = &priceID.String
	}
	sub.StripeCustomerID = customerID.String
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}

// FindUserIDByCustomer resolves the local user owning a payments customer id.
func (s *SubscriptionStore) FindUserIDByCustomer(ctx context.Context, customerID string) (string, error) {
	query, args, err := psql.Select("user_id").
		From(subscriptionTable).
		Where(squirrel.Eq{"stripe_customer_id": customerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build customer lookup: %w", err)
	}

	var userID string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve customer %s: %w", customerID, err)
	}
	return userID, nil
}

// ApplyDowngrade clears the remote subscription and moves the row to the given plan.
func (s *SubscriptionStore) ApplyDowngrade(ctx context.Context, userID string, d models.Downgrade) error {
	query, args, err := psql.Update(subscriptionTable).
		Set("status", d.Status).
		Set("plan", d.Plan.String()).
		Set("package_type", d.Plan.String()).
		Set("stripe_subscription_id", nil).
		Set("stripe_price_id", d.StripePriceID).
		Set("current_period_end", nil).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build downgrade: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to downgrade subscription for %s: %w", userID, err)
	}
	return nil
}

// Activate upserts the row written after a completed checkout.
func (s *SubscriptionStore) Activate(ctx context.Context, a models.SubscriptionActivation) error {
	var periodEnd interface{}
	if a.CurrentPeriodEnd != nil {
		periodEnd = *a.CurrentPeriodEnd
	}

	query, args, err := psql.Insert(subscriptionTable).
		Columns("user_id", "plan", "package_type", "status", "stripe_subscription_id",
			"stripe_price_id", "stripe_customer_id", "current_period_end").
		Values(a.UserID, a.Plan.String(), a.Plan.String(), models.StatusActive, a.StripeSubscriptionID,
			a.StripePriceID, a.StripeCustomerID, periodEnd).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			package_type = EXCLUDED.package_type,
			status = EXCLUDED.status,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			stripe_price_id = EXCLUDED.stripe_price_id,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build activation: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to activate subscription for %s: %w", a.UserID, err)
	}
	return nil
}
