package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/submission-vault/internal/bootstrap"
	"github.com/kirillkom/submission-vault/internal/config"
	"github.com/kirillkom/submission-vault/internal/observability/logging"
	"github.com/kirillkom/submission-vault/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(logging.Options{
		Service:  serviceName,
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: workerMetrics.Registry(),
		OnQueueLag: func(lag time.Duration) {
			workerMetrics.ObserveQueueLag(serviceName, lag)
		},
	})
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", zap.String("subject", cfg.NATSAnalysisSubject))
	err = app.Queue.SubscribeAnalysisRequested(ctx, func(handlerCtx context.Context, submissionID string) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, cfg.AnalysisTimeout+30*time.Second)
		defer cancel()

		workerMetrics.StartJob()
		started := time.Now()
		_, err := app.Pipeline.RunContentAnalysis(jobCtx, submissionID)
		workerMetrics.FinishJob(serviceName, time.Since(started), err)
		if err != nil {
			logger.Warn("analysis_job_failed", zap.String("submission_id", submissionID), zap.Error(err))
		}
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", zap.Error(err))
	}
}
