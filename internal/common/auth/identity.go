// internal/common/auth/identity.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"entitlement-service/internal/common/config"
	commonhttp "entitlement-service/internal/common/http"
	"entitlement-service/internal/models"
)

// ErrInvalidToken is returned when the token is missing, malformed, expired or rejected.
var ErrInvalidToken = errors.New("invalid access token")

// Resolver turns an access token into the caller's identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.Identity, error)
}

// UserEndpointResolver asks the hosted auth service who owns a token.
type UserEndpointResolver struct {
	baseURL string
	anonKey string
	client  *commonhttp.Client
}

func NewUserEndpointResolver(baseURL, anonKey string, client *commonhttp.Client) *UserEndpointResolver {
	return &UserEndpointResolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *UserEndpointResolver) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	if r.anonKey != "" {
		headers["apikey"] = r.anonKey
	}

	var user userResponse
	err := r.client.GetJSON(ctx, r.baseURL+"/auth/v1/user", headers, &user)
	if err != nil {
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) && isRejection(statusErr.StatusCode) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}

	return &models.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func isRejection(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden ||
		status == http.StatusBadRequest || status == http.StatusNotFound
}

// NewResolver verifies tokens locally when a signing secret is configured and
// falls back to the hosted user endpoint otherwise.
func NewResolver(cfg config.AuthConfig) (Resolver, error) {
	if cfg.JWTSecret != "" {
		verifier, err := NewVerifier(cfg.JWTSecret, cfg.Audience)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	}
	if cfg.URL == "" {
		return nil, errors.New("auth.url or auth.jwt_secret must be set")
	}
	return NewUserEndpointResolver(cfg.URL, cfg.AnonKey, commonhttp.NewClient(config.GetDuration(cfg.Timeout))), nil
}
