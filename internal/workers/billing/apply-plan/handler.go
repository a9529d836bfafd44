// internal/workers/billing/apply-plan/handler.go
package applyplan

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/models"
	"entitlement-service/pkg/plans"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "apply-plan"

// LimitsWriter persists the user_limits row.
type LimitsWriter interface {
	Upsert(ctx context.Context, limits models.UserLimits) error
}

// StatusCache drops a cached subscription status.
type StatusCache interface {
	Invalidate(ctx context.Context, userID string) error
}

type Handler struct {
	config     *Config
	limits     LimitsWriter
	cache      StatusCache
	logger     logger.Logger
	errHandler *errors.ErrorHandler
	now        func() time.Time
}

// NewHandler builds the entitlement writer. cache may be nil.
func NewHandler(config *Config, limits LimitsWriter, cache StatusCache, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		limits:     limits,
		cache:      cache,
		logger:     log,
		errHandler: errors.NewErrorHandler(log),
		now:        time.Now,
	}
}

// Apply hard-resets the user's usage counters and writes the quotas of plan.
// The returned error is informational; callers that treat the write as
// fire-and-forget may ignore it.
func (h *Handler) Apply(ctx context.Context, userID string, plan plans.Plan) error {
	_, err := h.apply(ctx, strings.TrimSpace(userID), plan)
	return err
}

func (h *Handler) apply(ctx context.Context, userID string, plan plans.Plan) (*models.UserLimits, error) {
	if userID == "" {
		h.logger.Warn("apply plan skipped: no user id", map[string]interface{}{"plan": plan.String()})
		return nil, errors.NewMissingUserIDError()
	}

	limits, err := plans.LimitsFor(plan)
	if err != nil {
		h.logger.Error("apply plan rejected unknown plan", map[string]interface{}{
			"userId": userID,
			"plan":   plan.String(),
		})
		return nil, errors.NewUnknownPlanError(plan.String())
	}

	row := models.NewUserLimits(userID, plan, limits, h.now().UTC())
	if err := h.limits.Upsert(ctx, row); err != nil {
		h.logger.Error("failed to upsert user limits", map[string]interface{}{
			"userId": userID,
			"plan":   plan.String(),
			"error":  err.Error(),
		})
		return nil, errors.NewQueryExecutionFailedError("upsert user_limits", err)
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, userID); err != nil {
			h.logger.Warn("failed to invalidate status cache", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}

	h.logger.Info("plan applied", map[string]interface{}{
		"userId":       userID,
		"plan":         plan.String(),
		"dailyLimit":   row.DailyLimit,
		"monthlyLimit": row.MonthlyLimit,
	})
	return &row, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errHandler.HandleJobError(ctx, client, job, errors.NewValidationError(err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	row, err := h.apply(ctx, strings.TrimSpace(input.UserID), plans.Parse(input.Plan))
	if err != nil {
		return nil, err
	}
	return &Output{
		UserID:       row.UserID,
		Plan:         row.Plan,
		DailyLimit:   row.DailyLimit,
		MonthlyLimit: row.MonthlyLimit,
		AppliedAt:    row.UpdatedAt,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
