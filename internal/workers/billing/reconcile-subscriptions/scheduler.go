// internal/workers/billing/reconcile-subscriptions/scheduler.go
package reconcilesubscriptions

import (
	"context"
	"time"
)

// RunEvery reconciles on a fixed interval until ctx is cancelled.
// Runs never overlap within one process.
func (h *Handler) RunEvery(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("reconcile scheduler started", map[string]interface{}{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("reconcile scheduler stopped", nil)
			return nil
		case <-ticker.C:
			// failures are already logged and counted by Reconcile
			_, _ = h.Reconcile(ctx, TriggerScheduler)
		}
	}
}
