// internal/api/router.go
package api

import (
	"context"
	"encoding/json"
	"time"

	"entitlement-service/internal/common/auth"
	"entitlement-service/internal/common/logger"
	loguseraction "entitlement-service/internal/workers/audit/log-user-action"
	cancelsubscription "entitlement-service/internal/workers/billing/cancel-subscription"
	createcheckout "entitlement-service/internal/workers/billing/create-checkout"
	reconcilesubscriptions "entitlement-service/internal/workers/billing/reconcile-subscriptions"
	stripewebhook "entitlement-service/internal/workers/billing/stripe-webhook"
	subscriptionstatus "entitlement-service/internal/workers/billing/subscription-status"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Reconciler interface {
	Reconcile(ctx context.Context, trigger string) (*reconcilesubscriptions.Report, error)
}

type Canceller interface {
	Execute(ctx context.Context, input *cancelsubscription.Input) (*cancelsubscription.Output, error)
}

type CheckoutCreator interface {
	Execute(ctx context.Context, input *createcheckout.Input) (*createcheckout.Output, error)
}

type StatusReader interface {
	Execute(ctx context.Context, input *subscriptionstatus.Input) (*subscriptionstatus.Output, error)
}

type ActionLogger interface {
	Log(ctx context.Context, userID, action string, metadata json.RawMessage) *loguseraction.LogError
}

type WebhookReceiver interface {
	Execute(ctx context.Context, input *stripewebhook.Input) (*stripewebhook.Output, error)
}

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

type Options struct {
	AllowedOrigins []string
	CronSecret     string
	CookieName     string
	RateLimit      rate.Limit
	RateBurst      int

	// ReconcileTimeout extends the write deadline of the reconcile route.
	ReconcileTimeout time.Duration
}

type Services struct {
	Resolver   auth.Resolver
	Reconciler Reconciler
	Canceller  Canceller
	Checkout   CheckoutCreator
	Status     StatusReader
	Actions    ActionLogger
	Webhook    WebhookReceiver
	Checkers   map[string]Checker
}

type Server struct {
	opts     Options
	services Services
	logger   logger.Logger
}

func NewServer(opts Options, services Services, log logger.Logger) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "sb-access-token"
	}
	return &Server{
		opts:     opts,
		services: services,
		logger:   log.WithFields(map[string]interface{}{"component": "http"}),
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger), requestMetrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Cron-Secret", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.opts.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.opts.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bearer := auth.Middleware(s.services.Resolver, auth.FromBearer(), s.logger)
	cookie := auth.Middleware(s.services.Resolver, auth.FromCookie(s.opts.CookieName), s.logger)

	api := router.Group("/api")
	api.GET("/subscriptions/reconcile", auth.RequireSharedSecret("X-Cron-Secret", s.opts.CronSecret), s.reconcile)
	api.POST("/subscriptions/cancel", bearer, s.cancel)
	api.GET("/subscriptions/status", cookie, s.status)
	api.POST("/checkout", cookie, s.checkout)
	api.POST("/user-action", s.userAction(newIPLimiter(s.opts.RateLimit, s.opts.RateBurst)))
	api.POST("/stripe/webhook", s.webhook)

	return router
}
