// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"entitlement-service/internal/common/config"
	"entitlement-service/internal/common/logger"
	"entitlement-service/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes, fails or throws on the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. The handler is wrapped with job metrics.
func NewWorker(client zbc.Client, taskType string, cfg config.WorkerConfig, handler JobHandler, log logger.Logger) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	maxJobs := cfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = 1
	}

	builder := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler)).
		MaxJobsActive(maxJobs)
	if cfg.Timeout > 0 {
		builder = builder.Timeout(config.GetDuration(cfg.Timeout))
	}

	log.Info("worker started", map[string]interface{}{"maxJobsActive": maxJobs})
	return &CamundaWorker{worker: builder.Open(), logger: log, taskType: taskType}
}

func instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		}()
		handler.Handle(client, job)
	}
}

// Stop closes the job worker. The shared Zeebe client is closed by its owner.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
