// internal/common/auth/middleware.go
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"entitlement-service/internal/common/logger"

	"github.com/gin-gonic/gin"
)

// TokenSource extracts an access token from a request.
type TokenSource func(c *gin.Context) (string, bool)

// FromBearer reads "Authorization: Bearer <token>".
func FromBearer() TokenSource {
	return func(c *gin.Context) (string, bool) {
		return extractBearerToken(c.GetHeader("Authorization"))
	}
}

// FromCookie reads the named session cookie.
func FromCookie(name string) TokenSource {
	return func(c *gin.Context) (string, bool) {
		token, err := c.Cookie(name)
		if err != nil || strings.TrimSpace(token) == "" {
			return "", false
		}
		return token, true
	}
}

// Middleware resolves the caller and injects it into the request context.
// Any failure to resolve answers 401 {"error": "Unauthorized"}.
func Middleware(resolver Resolver, source TokenSource, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := source(c)
		if !ok {
			respondUnauthorized(c)
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				log.Warn("identity resolution failed", map[string]interface{}{
					"path":  c.Request.URL.Path,
					"error": err,
				})
			}
			respondUnauthorized(c)
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// RequireSharedSecret guards machine-to-machine routes. An empty secret disables the check.
func RequireSharedSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			respondUnauthorized(c)
			return
		}
		c.Next()
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}
