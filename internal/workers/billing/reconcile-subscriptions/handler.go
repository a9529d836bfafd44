// internal/workers/billing/reconcile-subscriptions/handler.go
package reconcilesubscriptions

import (
	"context"
	stderrors "errors"
	"time"

	"entitlement-service/internal/common/aws"
	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/common/metrics"
	"entitlement-service/internal/common/observability"
	"entitlement-service/internal/common/stripe"
	"entitlement-service/internal/models"
	"entitlement-service/internal/repository"
	"entitlement-service/pkg/plans"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "reconcile-subscriptions"

type Gateway interface {
	ListSubscriptions(ctx context.Context, startingAfter string, limit int64) (*stripe.Page, error)
}

type SubscriptionStore interface {
	FindUserIDByCustomer(ctx context.Context, customerID string) (string, error)
	ApplyDowngrade(ctx context.Context, userID string, d models.Downgrade) error
}

type PlanApplier interface {
	Apply(ctx context.Context, userID string, plan plans.Plan) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, data interface{}) error
}

type Handler struct {
	config     *Config
	gateway    Gateway
	store      SubscriptionStore
	applier    PlanApplier
	publisher  EventPublisher
	obs        *observability.Observability
	logger     logger.Logger
	errHandler *errors.ErrorHandler
}

// NewHandler builds the reconciler. publisher and obs may be nil.
func NewHandler(
	config *Config,
	gateway Gateway,
	store SubscriptionStore,
	applier PlanApplier,
	publisher EventPublisher,
	obs *observability.Observability,
	log logger.Logger,
) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		gateway:    gateway,
		store:      store,
		applier:    applier,
		publisher:  publisher,
		obs:        obs,
		logger:     log,
		errHandler: errors.NewErrorHandler(log),
	}
}

// Reconcile walks every remote subscription page and downgrades users whose
// subscription is no longer active or trialing. Per-subscription failures are
// counted and skipped; a page fetch failure aborts the run.
func (h *Handler) Reconcile(ctx context.Context, trigger string) (*Report, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	report := &Report{StartedAt: time.Now().UTC()}
	log := h.logger.WithFields(map[string]interface{}{"trigger": trigger})
	log.Info("reconciliation started", nil)

	err := h.walk(ctx, trigger, report, log)

	elapsed := time.Since(report.StartedAt)
	report.DurationMs = elapsed.Milliseconds()

	outcome := "success"
	if err != nil {
		outcome = "aborted"
	}
	metrics.ReconcileRunsTotal.WithLabelValues(trigger, outcome).Inc()
	h.obs.RecordRun(ctx, trigger, outcome, elapsed, report.Downgraded)

	fields := map[string]interface{}{
		"pages":      report.Pages,
		"scanned":    report.Scanned,
		"healthy":    report.Healthy,
		"downgraded": report.Downgraded,
		"unmatched":  report.Unmatched,
		"failed":     report.Failed,
		"durationMs": report.DurationMs,
	}
	if err != nil {
		fields["error"] = err.Error()
		log.Error("reconciliation aborted", fields)
		return report, err
	}
	log.Info("reconciliation finished", fields)
	return report, nil
}

func (h *Handler) walk(ctx context.Context, trigger string, report *Report, log logger.Logger) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return errors.NewReconcileAbortedError(report.Pages+1, err)
		}

		page, err := h.gateway.ListSubscriptions(ctx, cursor, h.config.PageSize)
		if err != nil {
			return errors.NewReconcileAbortedError(report.Pages+1, err)
		}
		report.Pages++

		for _, sub := range page.Subscriptions {
			report.Scanned++
			result := h.reconcileOne(ctx, trigger, sub, log)
			metrics.ReconcileSubscriptions.WithLabelValues(result).Inc()
			switch result {
			case resultHealthy:
				report.Healthy++
			case resultDowngraded:
				report.Downgraded++
			case resultUnmatched:
				report.Unmatched++
			default:
				report.Failed++
			}
		}

		next := page.LastID()
		if !page.HasMore || next == "" {
			return nil
		}
		cursor = next
	}
}

const (
	resultHealthy    = "healthy"
	resultDowngraded = "downgraded"
	resultUnmatched  = "unmatched"
	resultFailed     = "failed"
)

func (h *Handler) reconcileOne(ctx context.Context, trigger string, sub stripe.RemoteSubscription, log logger.Logger) string {
	if plans.IsHealthyStatus(sub.Status) {
		return resultHealthy
	}

	fields := map[string]interface{}{
		"subscriptionId": sub.ID,
		"customerId":     sub.CustomerID,
		"status":         sub.Status,
	}

	if sub.CustomerID == "" {
		log.Warn("remote subscription has no customer", fields)
		return resultUnmatched
	}

	userID, err := h.store.FindUserIDByCustomer(ctx, sub.CustomerID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			log.Warn("no local user for customer", fields)
			return resultUnmatched
		}
		fields["error"] = err.Error()
		log.Error("customer lookup failed", fields)
		return resultFailed
	}

	if err := h.Downgrade(ctx, userID, sub, trigger); err != nil {
		return resultFailed
	}
	return resultDowngraded
}

// Downgrade moves userID back to Freemium, resets entitlements and publishes
// subscription.downgraded. Event publishing is best-effort.
func (h *Handler) Downgrade(ctx context.Context, userID string, sub stripe.RemoteSubscription, trigger string) error {
	fields := map[string]interface{}{
		"userId":         userID,
		"subscriptionId": sub.ID,
		"status":         sub.Status,
	}

	if err := h.store.ApplyDowngrade(ctx, userID, models.FreemiumDowngrade()); err != nil {
		fields["error"] = err.Error()
		h.logger.Error("failed to downgrade subscription", fields)
		return errors.NewQueryExecutionFailedError("downgrade user_subscription", err)
	}

	if err := h.applier.Apply(ctx, userID, plans.Freemium); err != nil {
		fields["error"] = err.Error()
		h.logger.Error("failed to reset entitlements after downgrade", fields)
		return err
	}

	h.logger.Info("user downgraded to Freemium", fields)

	if h.publisher != nil {
		event := DowngradedEvent{
			UserID:         userID,
			CustomerID:     sub.CustomerID,
			SubscriptionID: sub.ID,
			RemoteStatus:   sub.Status,
			Trigger:        trigger,
		}
		if err := h.publisher.PublishEvent(ctx, aws.EventSubscriptionDowngraded, event); err != nil {
			h.logger.Warn("failed to publish downgrade event", map[string]interface{}{
				"userId": userID,
				"error":  errors.NewEventPublishError(aws.EventSubscriptionDowngraded, err).Details,
			})
		}
	}
	return nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	report, err := h.Reconcile(context.Background(), TriggerJob)
	if err != nil {
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.completeJob(client, job, &Output{Report: report})
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
