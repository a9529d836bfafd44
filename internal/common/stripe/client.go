// internal/common/stripe/client.go
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
)

// MaxPageSize is the largest page the list endpoint returns.
const MaxPageSize int64 = 100

var ErrNotConfigured = errors.New("stripe secret key not configured")

// RemoteSubscription is the slice of a payments-side subscription this service reads.
type RemoteSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	Metadata          map[string]string
}

// Page is one cursor page of remote subscriptions.
type Page struct {
	Subscriptions []RemoteSubscription
	HasMore       bool
}

// LastID is the cursor for the following page.
func (p *Page) LastID() string {
	if len(p.Subscriptions) == 0 {
		return ""
	}
	return p.Subscriptions[len(p.Subscriptions)-1].ID
}

// CheckoutRequest describes a single line item subscription checkout.
type CheckoutRequest struct {
	UserID      string
	PlanName    string
	PlanKey     string
	CustomerID  string
	PriceID     string
	ProductName string
	UnitAmount  int64
	Currency    string
	Interval    string
	SuccessURL  string
	CancelURL   string
}

// Gateway is the payments collaborator used by the billing workers.
type Gateway interface {
	ListSubscriptions(ctx context.Context, startingAfter string, limit int64) (*Page, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// Client talks to the payments API with a per-client key. No package globals are touched.
type Client struct {
	key string

	listSubscriptions     func(params *stripelib.SubscriptionListParams) (*stripelib.SubscriptionList, error)
	updateSubscription    func(id string, params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
}

// NewClient builds a Client against the default API backend.
func NewClient(secretKey string) *Client {
	backend := stripelib.GetBackend(stripelib.APIBackend)
	subs := &subscription.Client{B: backend, Key: secretKey}
	sessions := &stripesession.Client{B: backend, Key: secretKey}

	return &Client{
		key: strings.TrimSpace(secretKey),
		listSubscriptions: func(params *stripelib.SubscriptionListParams) (*stripelib.SubscriptionList, error) {
			return collectPage(subs.List(params))
		},
		updateSubscription:    subs.Update,
		createCheckoutSession: sessions.New,
	}
}

func collectPage(it *subscription.Iter) (*stripelib.SubscriptionList, error) {
	list := &stripelib.SubscriptionList{}
	for it.Next() {
		list.Data = append(list.Data, it.Subscription())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if meta := it.Meta(); meta != nil {
		list.ListMeta = *meta
	}
	return list, nil
}

// ListSubscriptions fetches exactly one page, starting after the given id.
// The default status filter applies, so canceled subscriptions are not listed.
func (c *Client) ListSubscriptions(ctx context.Context, startingAfter string, limit int64) (*Page, error) {
	if c.key == "" {
		return nil, ErrNotConfigured
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	params := &stripelib.SubscriptionListParams{}
	params.Context = ctx
	params.Limit = stripelib.Int64(limit)
	params.Single = true
	if startingAfter != "" {
		params.StartingAfter = stripelib.String(startingAfter)
	}

	list, err := c.listSubscriptions(params)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	page := &Page{
		Subscriptions: make([]RemoteSubscription, 0, len(list.Data)),
		HasMore:       list.HasMore,
	}
	for _, sub := range list.Data {
		if sub == nil {
			continue
		}
		page.Subscriptions = append(page.Subscriptions, fromStripe(sub))
	}
	return page, nil
}

// CancelAtPeriodEnd flags a subscription to end at the close of its current period.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	if c.key == "" {
		return ErrNotConfigured
	}

	params := &stripelib.SubscriptionParams{
		CancelAtPeriodEnd: stripelib.Bool(true),
	}
	params.Context = ctx

	if _, err := c.updateSubscription(subscriptionID, params); err != nil {
		return fmt.Errorf("update subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// CreateCheckoutSession returns the hosted checkout URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if c.key == "" {
		return "", ErrNotConfigured
	}

	metadata := map[string]string{
		"user_id": req.UserID,
		"plan":    req.PlanName,
	}

	params := &stripelib.CheckoutSessionParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		SuccessURL:        stripelib.String(req.SuccessURL),
		CancelURL:         stripelib.String(req.CancelURL),
		ClientReferenceID: stripelib.String(req.UserID),
		LineItems:         []*stripelib.CheckoutSessionLineItemParams{lineItem(req)},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripelib.String(req.CustomerID)
	}

	session, err := c.createCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("stripe returned empty checkout URL")
	}
	return strings.TrimSpace(session.URL), nil
}

func lineItem(req CheckoutRequest) *stripelib.CheckoutSessionLineItemParams {
	if req.PriceID != "" {
		return &stripelib.CheckoutSessionLineItemParams{
			Price:    stripelib.String(req.PriceID),
			Quantity: stripelib.Int64(1),
		}
	}
	return &stripelib.CheckoutSessionLineItemParams{
		Quantity: stripelib.Int64(1),
		PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripelib.String(req.Currency),
			UnitAmount: stripelib.Int64(req.UnitAmount),
			ProductData: &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripelib.String(req.ProductName),
			},
			Recurring: &stripelib.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripelib.String(req.Interval),
			},
		},
	}
}

func fromStripe(sub *stripelib.Subscription) RemoteSubscription {
	remote := RemoteSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		remote.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		if item.Price != nil {
			remote.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			remote.CurrentPeriodEnd = &end
		}
	}
	return remote
}
