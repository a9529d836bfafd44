// internal/common/stripe/webhook.go
package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// Event types the billing webhook acts on.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is a verified webhook delivery.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// VerifyEvent checks the Stripe-Signature header and returns the decoded envelope.
func VerifyEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return nil, fmt.Errorf("missing Stripe signature")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}
	return &Event{ID: event.ID, Type: string(event.Type), Raw: raw}, nil
}

// CompletedCheckout is the part of a checkout.session object the webhook reads.
type CompletedCheckout struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// UserID prefers metadata and falls back to the client reference.
func (c *CompletedCheckout) UserID() string {
	if id := strings.TrimSpace(c.Metadata["user_id"]); id != "" {
		return id
	}
	return strings.TrimSpace(c.ClientReferenceID)
}

// DecodeCheckout decodes event.Raw for checkout.session.completed.
func DecodeCheckout(raw json.RawMessage) (*CompletedCheckout, error) {
	var session CompletedCheckout
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout.session: %w", err)
	}
	return &session, nil
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// DecodeSubscription decodes event.Raw for customer.subscription.* events.
func DecodeSubscription(raw json.RawMessage) (*RemoteSubscription, error) {
	var p subscriptionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}

	sub := &RemoteSubscription{
		ID:                p.ID,
		CustomerID:        strings.TrimSpace(p.Customer),
		Status:            p.Status,
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
		Metadata:          p.Metadata,
	}
	if len(p.Items.Data) > 0 {
		sub.PriceID = p.Items.Data[0].Price.ID
		if end := p.Items.Data[0].CurrentPeriodEnd; end > 0 {
			t := time.Unix(end, 0).UTC()
			sub.CurrentPeriodEnd = &t
		}
	}
	return sub, nil
}
