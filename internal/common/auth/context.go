// internal/common/auth/context.go
package auth

import (
	"context"

	"entitlement-service/internal/models"
)

type ctxKey int

const identityKey ctxKey = iota

// WithIdentity stores the resolved caller in a context.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller stored by the middleware.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*models.Identity)
	return identity, ok && identity != nil
}
