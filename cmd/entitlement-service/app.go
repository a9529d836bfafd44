// cmd/entitlement-service/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"entitlement-service/internal/api"
	"entitlement-service/internal/common/auth"
	"entitlement-service/internal/common/aws"
	"entitlement-service/internal/common/config"
	"entitlement-service/internal/common/database"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/common/observability"
	"entitlement-service/internal/common/stripe"
	"entitlement-service/internal/repository"

	loguseraction "entitlement-service/internal/workers/audit/log-user-action"
	applyplan "entitlement-service/internal/workers/billing/apply-plan"
	cancelsubscription "entitlement-service/internal/workers/billing/cancel-subscription"
	createcheckout "entitlement-service/internal/workers/billing/create-checkout"
	reconcilesubscriptions "entitlement-service/internal/workers/billing/reconcile-subscriptions"
	stripewebhook "entitlement-service/internal/workers/billing/stripe-webhook"
	subscriptionstatus "entitlement-service/internal/workers/billing/subscription-status"
)

// app owns every long-lived collaborator. Nothing is package-global.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger

	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
	obs   *observability.Observability

	applier    *applyplan.Handler
	reconciler *reconcilesubscriptions.Handler
	canceller  *cancelsubscription.Handler
	checkout   *createcheckout.Handler
	status     *subscriptionstatus.Handler
	actions    *loguseraction.Handler
	webhook    *stripewebhook.Handler
}

func newApp(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, zapLog: zapLog, log: logger.NewZapAdapter(zapLog)}

	// --- Init PostgreSQL with retry ---
	err := retryWithBackoff(ctx, func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		a.pg = pg
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis; the status cache is optional ---
	redisClient := database.NewRedis(cfg.Database.Redis)
	if err := redisClient.Ping(ctx); err != nil {
		zapLog.Warn("redis unavailable, status cache disabled", zap.Error(err))
		_ = redisClient.Close()
	} else {
		a.redis = redisClient
		zapLog.Info("Redis connected successfully")
	}

	// --- Init Elasticsearch when configured ---
	if cfg.Database.Elasticsearch.Enabled() {
		err = retryWithBackoff(ctx, func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			a.es = es
			return nil
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, audit mirror disabled", zap.Error(err))
			a.es = nil
		}
	}

	a.obs, err = observability.New(cfg.App.Name, prometheus.DefaultRegisterer)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}

	subscriptions := repository.NewSubscriptionStore(a.pg.DB)
	limits := repository.NewLimitsStore(a.pg.DB)
	gateway := stripe.NewClient(cfg.Stripe.SecretKey)

	var statusCache *subscriptionstatus.Cache
	var invalidator applyplan.StatusCache
	if a.redis != nil {
		statusCache = subscriptionstatus.NewCache(a.redis.Client, config.GetDuration(cfg.Notifications.StatusCacheTTL))
		invalidator = statusCache
	}

	var publisher reconcilesubscriptions.EventPublisher
	if cfg.Notifications.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Warn("sns publisher disabled", zap.Error(err))
		} else {
			publisher = sns
		}
	}

	var mirror loguseraction.Mirror
	if a.es != nil && cfg.Audit.ElasticsearchIndex != "" {
		mirror = loguseraction.NewESMirror(a.es.Client, cfg.Audit.ElasticsearchIndex)
	}

	a.applier = applyplan.NewHandler(applyplan.LoadConfig(cfg), limits, invalidator, a.log)
	a.reconciler = reconcilesubscriptions.NewHandler(
		reconcilesubscriptions.LoadConfig(cfg),
		gateway, subscriptions, a.applier, publisher, a.obs, a.log,
	)
	a.canceller = cancelsubscription.NewHandler(cancelsubscription.LoadConfig(), gateway, subscriptions, a.log)
	a.checkout = createcheckout.NewHandler(createcheckout.LoadConfig(cfg), gateway, subscriptions, a.log)
	a.status = subscriptionstatus.NewHandler(subscriptionstatus.LoadConfig(cfg), subscriptions, limits, statusCache, a.log)
	a.actions = loguseraction.NewHandler(loguseraction.LoadConfig(cfg), repository.NewAuditStore(a.pg.DB), mirror, a.log)
	a.webhook = stripewebhook.NewHandler(stripewebhook.LoadConfig(cfg), subscriptions, a.applier, a.reconciler, a.log)

	return a, nil
}

func (a *app) migrate(ctx context.Context) error {
	applied, err := database.Migrate(ctx, a.pg.DB)
	if err != nil {
		return err
	}
	for _, m := range applied {
		a.zapLog.Info("migration applied", zap.Int64("version", m.Version), zap.String("path", m.Path))
	}
	return nil
}

func (a *app) apiServer() (*api.Server, error) {
	resolver, err := auth.NewResolver(a.cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("identity resolver: %w", err)
	}

	checkers := map[string]api.Checker{"postgres": a.pg.Ping}
	if a.redis != nil {
		checkers["redis"] = a.redis.Ping
	}

	return api.NewServer(api.Options{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		CronSecret:     a.cfg.Auth.CronSecret,
		CookieName:     a.cfg.Auth.CookieName,
		RateLimit:      rate.Limit(a.cfg.Server.RateLimitPerSecond),
		RateBurst:      a.cfg.Server.RateLimitBurst,

		ReconcileTimeout: config.GetDuration(a.cfg.Reconciler.Timeout),
	}, api.Services{
		Resolver:   resolver,
		Reconciler: a.reconciler,
		Canceller:  a.canceller,
		Checkout:   a.checkout,
		Status:     a.status,
		Actions:    a.actions,
		Webhook:    a.webhook,
		Checkers:   checkers,
	}, a.log), nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.obs.Shutdown(ctx); err != nil {
		a.zapLog.Warn("otel shutdown failed", zap.Error(err))
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.pg.Close()
	_ = a.zapLog.Sync()
}
