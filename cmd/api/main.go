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

	httpadapter "github.com/kirillkom/submission-vault/internal/adapters/http"
	"github.com/kirillkom/submission-vault/internal/bootstrap"
	"github.com/kirillkom/submission-vault/internal/config"
	"github.com/kirillkom/submission-vault/internal/observability/logging"
	"github.com/kirillkom/submission-vault/internal/observability/metrics"
)

const serviceName = "api"

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

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: httpMetrics.Registry(),
	})
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer app.Close()

	router, err := httpadapter.NewRouter(ctx, httpadapter.Dependencies{
		Uploader: app.Uploader,
		Pipeline: app.Pipeline,
		Reader:   app.Pipeline,
		Rules:    app.RuleAdmin,
	}, httpadapter.Options{
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		RateLimitRPS:   cfg.HTTPRateLimitRPS,
		RateLimitBurst: cfg.HTTPRateLimitBurst,
		MaxInFlight:    cfg.HTTPMaxInFlight,
		CORSOrigins:    cfg.CORSOrigins(),
		OnReject: func(reason string) {
			httpMetrics.RecordRejected(serviceName, reason)
		},
		Metrics: httpMetrics.Handler(),
	}, logger)
	if err != nil {
		logger.Fatal("router_init_failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           httpMetrics.Middleware(serviceName, router.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.PromotionTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_server_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", zap.Error(err))
	}
}
