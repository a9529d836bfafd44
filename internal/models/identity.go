// internal/models/identity.go
package models

// Identity is the authenticated caller resolved from an access token.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}
