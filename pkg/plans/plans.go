// pkg/plans/plans.go
package plans

import (
	"errors"
	"strings"
)

// Tier is the closed set of plans the catalog knows about.
type Tier int

const (
	TierUnknown Tier = iota
	TierFreemium
	TierSmarter
	TierBusiness
)

var ErrUnknownPlan = errors.New("UNKNOWN_PLAN")

// Plan is a catalog tier or an unrecognised raw identifier kept for forward compatibility.
type Plan struct {
	tier Tier
	raw  string
}

var (
	Freemium = Plan{tier: TierFreemium, raw: "Freemium"}
	Smarter  = Plan{tier: TierSmarter, raw: "Smarter"}
	Business = Plan{tier: TierBusiness, raw: "Business"}
)

// FreemiumPriceID is stored as stripe_price_id for users without a paid subscription.
const FreemiumPriceID = "freemium"

// Limits are the entitlements granted by a plan.
type Limits struct {
	MonthlyRequests     int  `json:"monthlyRequests"`
	DailyGenerations    int  `json:"dailyGenerations"`
	AllowExport         bool `json:"allowExport"`
	AllowCustomBranding bool `json:"allowCustomBranding"`
}

var catalog = map[Tier]Limits{
	TierFreemium: {MonthlyRequests: 10, DailyGenerations: 5},
	TierSmarter:  {MonthlyRequests: 500, DailyGenerations: 50, AllowExport: true},
	TierBusiness: {MonthlyRequests: 5000, DailyGenerations: 500, AllowExport: true, AllowCustomBranding: true},
}

// Parse maps a stored identifier onto the catalog. Matching is case-sensitive.
func Parse(raw string) Plan {
	switch raw {
	case Freemium.raw:
		return Freemium
	case Smarter.raw:
		return Smarter
	case Business.raw:
		return Business
	default:
		return Plan{tier: TierUnknown, raw: raw}
	}
}

// Unknown wraps an identifier that is not part of the catalog.
func Unknown(raw string) Plan {
	return Plan{tier: TierUnknown, raw: raw}
}

// IsValidPackageType reports whether raw names a catalog plan.
func IsValidPackageType(raw string) bool {
	return Parse(raw).Known()
}

func (p Plan) Tier() Tier     { return p.tier }
func (p Plan) Known() bool    { return p.tier != TierUnknown }
func (p Plan) String() string { return p.raw }

// LimitsFor returns the entitlements for a catalog plan. Unknown plans are rejected.
func LimitsFor(p Plan) (Limits, error) {
	limits, ok := catalog[p.tier]
	if !ok {
		return Limits{}, ErrUnknownPlan
	}
	return limits, nil
}

// CheckoutProduct is the server-trusted line item for a checkout session.
// UnitAmount is in the smallest currency unit and is a placeholder value.
type CheckoutProduct struct {
	Name       string
	UnitAmount int64
	Currency   string
	Interval   string
}

var checkoutTable = map[string]struct {
	plan    Plan
	product CheckoutProduct
}{
	"smarter": {
		plan:    Smarter,
		product: CheckoutProduct{Name: "Smarter Plan", UnitAmount: 100, Currency: "usd", Interval: "month"},
	},
	"business": {
		plan:    Business,
		product: CheckoutProduct{Name: "Business Plan", UnitAmount: 200, Currency: "usd", Interval: "month"},
	},
}

// CheckoutPlan resolves a checkout key such as "smarter". Keys are lower case only.
func CheckoutPlan(key string) (Plan, CheckoutProduct, bool) {
	entry, ok := checkoutTable[key]
	if !ok {
		return Plan{}, CheckoutProduct{}, false
	}
	return entry.plan, entry.product, true
}

// CheckoutKey is the inverse of CheckoutPlan.
func CheckoutKey(p Plan) string {
	return strings.ToLower(p.raw)
}

// IsHealthyStatus reports whether a remote subscription status keeps paid entitlements.
func IsHealthyStatus(status string) bool {
	return status == "active" || status == "trialing"
}
