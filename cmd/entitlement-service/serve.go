// cmd/entitlement-service/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"entitlement-service/internal/common/camunda"
	"entitlement-service/internal/common/config"
	loguseraction "entitlement-service/internal/workers/audit/log-user-action"
	applyplan "entitlement-service/internal/workers/billing/apply-plan"
	reconcilesubscriptions "entitlement-service/internal/workers/billing/reconcile-subscriptions"
)

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, job workers and the reconciliation ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply pending migrations before serving")
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	zapLog := newLogger(cfg)
	zapLog.Info("Starting entitlement service...", zap.String("version", Version))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, zapLog)
	if err != nil {
		return err
	}
	defer a.close()

	if runMigrations || cfg.Database.Postgres.MigrateOnStart {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	server, err := a.apiServer()
	if err != nil {
		return err
	}
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		zapLog.Info("Shutdown signal received, stopping HTTP server...")
		return httpServer.Shutdown(shutdownCtx)
	})

	if interval := config.GetDuration(cfg.Reconciler.Interval); interval > 0 {
		g.Go(func() error {
			return a.reconciler.RunEvery(gctx, interval)
		})
	}

	if cfg.Camunda.Enabled {
		g.Go(func() error {
			return runWorkers(gctx, a)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	zapLog.Info("Entitlement service stopped")
	return nil
}

// runWorkers opens one job worker per enabled task type and blocks until ctx ends.
func runWorkers(ctx context.Context, a *app) error {
	var client *camunda.Client
	err := retryWithBackoff(ctx, func() error {
		var err error
		client, err = camunda.NewClient(ctx, a.cfg.Camunda)
		return err
	}, 10, 2*time.Second, a.zapLog, "Zeebe client initialization")
	if err != nil {
		return err
	}
	defer client.Close()
	a.zapLog.Info("Zeebe client connected successfully")

	handlers := map[string]camunda.JobHandler{
		reconcilesubscriptions.TaskType: a.reconciler,
		applyplan.TaskType:              a.applier,
		loguseraction.TaskType:          a.actions,
	}

	var workers []*camunda.CamundaWorker
	for taskType, handler := range handlers {
		if !config.IsWorkerEnabled(a.cfg, taskType) {
			continue
		}
		workers = append(workers, camunda.NewWorker(client.GetClient(), taskType, config.GetWorkerConfig(a.cfg, taskType), handler, a.log))
	}

	<-ctx.Done()
	for _, w := range workers {
		w.Stop()
	}
	return nil
}
