// internal/workers/billing/create-checkout/models.go
package createcheckout

type Input struct {
	UserID  string `json:"userId"`
	PlanKey string `json:"plan"`
}

type Output struct {
	URL string `json:"url"`
}
