// internal/workers/audit/log-user-action/handler.go
package loguseraction

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"entitlement-service/internal/common/errors"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "log-user-action"

type Store interface {
	Insert(ctx context.Context, e models.AuditLogEntry) error
}

type Mirror interface {
	Index(ctx context.Context, entry models.AuditLogEntry) error
}

type Handler struct {
	config     *Config
	store      Store
	mirror     Mirror
	logger     logger.Logger
	errHandler *errors.ErrorHandler
	newID      func() string
	now        func() time.Time
}

// NewHandler builds the audit logger. mirror may be nil.
func NewHandler(config *Config, store Store, mirror Mirror, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		store:      store,
		mirror:     mirror,
		logger:     log,
		errHandler: errors.NewErrorHandler(log),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Log appends one entry. Missing user id or action is a silent no-op.
// Failures are logged as warnings and returned for callers that care.
func (h *Handler) Log(ctx context.Context, userID, action string, metadata json.RawMessage) *LogError {
	userID = strings.TrimSpace(userID)
	action = strings.TrimSpace(action)
	if userID == "" || action == "" {
		return nil
	}

	if string(metadata) == "null" {
		metadata = nil
	}

	entry := models.AuditLogEntry{
		ID:        h.newID(),
		UserID:    userID,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: h.now().UTC(),
	}

	if err := h.store.Insert(ctx, entry); err != nil {
		h.logger.Warn("failed to record user action", map[string]interface{}{
			"userId": userID,
			"action": action,
			"error":  errors.NewAuditWriteError(SinkDatabase, err).Details,
		})
		return &LogError{Sink: SinkDatabase, Err: err}
	}

	if h.mirror != nil {
		if err := h.mirror.Index(ctx, entry); err != nil {
			h.logger.Warn("failed to mirror user action", map[string]interface{}{
				"userId": userID,
				"action": action,
				"error":  errors.NewAuditWriteError(SinkElasticsearch, err).Details,
			})
			return &LogError{Sink: SinkElasticsearch, Err: err}
		}
	}
	return nil
}

// Execute always succeeds.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	_ = h.Log(ctx, input.UserID, input.Action, input.Metadata)
	return &Output{OK: true}, nil
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

	output, _ := h.Execute(ctx, &input)
	h.completeJob(ctx, client, job, output)
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
