// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"entitlement-service/internal/common/auth"
	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/validation"
	cancelsubscription "entitlement-service/internal/workers/billing/cancel-subscription"
	createcheckout "entitlement-service/internal/workers/billing/create-checkout"
	reconcilesubscriptions "entitlement-service/internal/workers/billing/reconcile-subscriptions"
	stripewebhook "entitlement-service/internal/workers/billing/stripe-webhook"
	subscriptionstatus "entitlement-service/internal/workers/billing/subscription-status"

	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBody = 65536
	maxRequestBody = 16384

	reconcileWriteMargin = 10 * time.Second
)

func identityID(c *gin.Context) string {
	if identity, ok := auth.IdentityFromContext(c.Request.Context()); ok {
		return identity.UserID
	}
	return ""
}

func (s *Server) reconcile(c *gin.Context) {
	if s.opts.ReconcileTimeout > 0 {
		deadline := time.Now().Add(s.opts.ReconcileTimeout + reconcileWriteMargin)
		if err := http.NewResponseController(c.Writer).SetWriteDeadline(deadline); err != nil {
			s.logger.Warn("could not extend write deadline for reconcile", map[string]interface{}{"error": err.Error()})
		}
	}

	report, err := s.services.Reconciler.Reconcile(c.Request.Context(), reconcilesubscriptions.TriggerHTTP)
	if err != nil {
		if report == nil {
			errors.WriteHTTP(c, err)
			return
		}
		stdErr := errors.Normalize(err)
		c.AbortWithStatusJSON(errors.HTTPStatus(stdErr.Code), gin.H{"error": stdErr.Message, "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

func (s *Server) cancel(c *gin.Context) {
	out, err := s.services.Canceller.Execute(c.Request.Context(), &cancelsubscription.Input{UserID: identityID(c)})
	if err != nil {
		errors.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) checkout(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
	if err != nil {
		errors.WriteHTTP(c, errors.NewValidationError(err.Error()))
		return
	}

	if result := validation.CheckoutRequest.Validate(body); !result.Valid {
		s.logger.Debug("checkout request rejected", map[string]interface{}{
			"errors": strings.Join(result.GetErrorMessages(), "; "),
		})
		errors.WriteHTTP(c, errors.NewInvalidPlanError(""))
		return
	}

	var input createcheckout.Input
	if err := json.Unmarshal(body, &input); err != nil {
		errors.WriteHTTP(c, errors.NewInvalidPlanError(""))
		return
	}
	input.UserID = identityID(c)

	out, err := s.services.Checkout.Execute(c.Request.Context(), &input)
	if err != nil {
		errors.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) status(c *gin.Context) {
	out, err := s.services.Status.Execute(c.Request.Context(), &subscriptionstatus.Input{UserID: identityID(c)})
	if err != nil {
		errors.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type userActionRequest struct {
	UserID   string          `json:"userId"`
	Action   string          `json:"action"`
	Metadata json.RawMessage `json:"metadata"`
}

// userAction always answers {ok:true}; rejected or throttled requests are dropped silently.
func (s *Server) userAction(limiter *ipLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.JSON(http.StatusOK, gin.H{"ok": true})

		if !limiter.Allow(c.ClientIP()) {
			s.logger.Warn("user action throttled", map[string]interface{}{"clientIp": c.ClientIP()})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
		if err != nil {
			s.logger.Debug("user action body unreadable", map[string]interface{}{"error": err.Error()})
			return
		}
		if result := validation.UserActionRequest.Validate(body); !result.Valid {
			s.logger.Debug("user action ignored", map[string]interface{}{
				"errors": strings.Join(result.GetErrorMessages(), "; "),
			})
			return
		}

		var req userActionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return
		}
		_ = s.services.Actions.Log(c.Request.Context(), req.UserID, req.Action, req.Metadata)
	}
}

func (s *Server) webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		errors.WriteHTTP(c, errors.NewWebhookSignatureError(err))
		return
	}

	out, err := s.services.Webhook.Execute(c.Request.Context(), &stripewebhook.Input{
		Payload:   payload,
		Signature: c.GetHeader("Stripe-Signature"),
	})
	if err != nil {
		errors.WriteHTTP(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.services.Checkers))
	ready := true
	for name, check := range s.services.Checkers {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
