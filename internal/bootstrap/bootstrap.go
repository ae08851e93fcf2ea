package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kirillkom/submission-vault/internal/config"
	"github.com/kirillkom/submission-vault/internal/core/ports"
	"github.com/kirillkom/submission-vault/internal/core/usecase"
	"github.com/kirillkom/submission-vault/internal/infrastructure/extractor"
	"github.com/kirillkom/submission-vault/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/submission-vault/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/submission-vault/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/submission-vault/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/submission-vault/internal/infrastructure/queue/nats"
	"github.com/kirillkom/submission-vault/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/submission-vault/internal/infrastructure/resilience"
	"github.com/kirillkom/submission-vault/internal/infrastructure/ruleconfig"
	"github.com/kirillkom/submission-vault/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/submission-vault/internal/infrastructure/storage/s3store"
	"github.com/kirillkom/submission-vault/internal/observability/metrics"
)

// Options tune how much of the stack a binary needs.
type Options struct {
	Service string
	Logger  *zap.Logger
	// Registerer receives pipeline metrics; nil keeps them unexported.
	Registerer prometheus.Registerer
	// SkipQueue builds the app without a NATS connection (the CLI talks to the database only).
	SkipQueue bool
	// OnQueueLag observes analysis request delivery delay in the worker.
	OnQueueLag func(time.Duration)
}

type App struct {
	Config config.Config
	Logger *zap.Logger

	DB        *sql.DB
	Queue     *nats.Bus
	Storage   ports.ObjectStorage
	Pipeline  *usecase.SubmissionPipeline
	Uploader  *usecase.UploadUseCase
	RuleAdmin *usecase.RuleAdminUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	executor := resilience.NewExecutor(cfg.Resilience(), logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	submissions := postgres.NewSubmissionRepository(db)
	ruleRepo := postgres.NewRuleRepository(db)

	storage, err := openStorage(ctx, cfg, executor)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var bus *nats.Bus
	var events ports.EventBus
	if !opts.SkipQueue {
		bus, err = nats.NewWithOptions(cfg.NATSURL, nats.Subjects{
			AnalysisRequested: cfg.NATSAnalysisSubject,
			Transitions:       cfg.NATSEventsSubject,
		}, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
			OnQueueLag:         opts.OnQueueLag,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		events = bus
	}

	var pipelineMetrics ports.PipelineMetrics
	if opts.Registerer != nil {
		pipelineMetrics = metrics.NewPipelineMetrics(opts.Registerer, opts.Service)
	}

	textExtractor := extractor.NewRouter().
		Register(plaintext.NewExtractor(storage), ".txt", ".md", ".csv").
		Register(pdf.NewExtractor(storage), ".pdf").
		Register(spreadsheet.NewExtractor(storage), ".xlsx")

	var analyzer ports.ContentAnalyzer
	if cfg.AnalysisEnabled {
		// Model calls run far longer than storage calls; they get their own attempt budget.
		analysisPolicy := cfg.Resilience()
		analysisPolicy.AttemptTimeout = cfg.AnalysisTimeout
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
			Timeout:            cfg.AnalysisTimeout,
			ResilienceExecutor: resilience.NewExecutor(analysisPolicy, logger),
		})
		analyzer = ollama.NewAnalyzer(client)
	}

	staging := usecase.NewStagingCoordinator(storage, submissions, ruleRepo, usecase.StagingConfig{
		VaultRoot:        cfg.VaultRoot,
		PromotionTimeout: cfg.PromotionTimeout,
		StorageTimeout:   cfg.StorageTimeout,
	}, logger, pipelineMetrics)
	lifecycle := usecase.NewLifecycleMachine(submissions, staging, events, logger, pipelineMetrics)
	pipeline := usecase.NewSubmissionPipeline(
		usecase.NewVersionLedger(submissions),
		lifecycle,
		submissions,
		ruleRepo,
		textExtractor,
		analyzer,
		usecase.PipelineConfig{
			ApproveAllConcurrency: cfg.ApproveAllConcurrency,
			AnalysisTimeout:       cfg.AnalysisTimeout,
		},
		logger,
		pipelineMetrics,
	)
	uploader := usecase.NewUploadUseCase(storage, textExtractor, pipeline, events, usecase.UploadConfig{
		StagingPrefix: cfg.StagingPrefix,
		AutoAnalysis:  cfg.AnalysisEnabled && cfg.AutoAnalysis,
	}, logger)
	ruleAdmin := usecase.NewRuleAdminUseCase(ruleRepo)

	if cfg.RulesFile != "" {
		file, err := ruleconfig.LoadFile(cfg.RulesFile)
		if err != nil {
			closeAll(bus, db)
			return nil, fmt.Errorf("load rules file: %w", err)
		}
		applied, err := ruleconfig.Apply(ctx, ruleAdmin, file)
		if err != nil {
			closeAll(bus, db)
			return nil, fmt.Errorf("seed rules: %w", err)
		}
		logger.Info("rules_seeded", zap.String("file", cfg.RulesFile), zap.Int("document_types", applied))
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Queue:     bus,
		Storage:   storage,
		Pipeline:  pipeline,
		Uploader:  uploader,
		RuleAdmin: ruleAdmin,
		closeFn: func() {
			closeAll(bus, db)
		},
	}, nil
}

func openStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		return s3store.Open(ctx, s3store.Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		}, executor)
	default:
		return localfs.New(cfg.StoragePath)
	}
}

func closeAll(bus *nats.Bus, db *sql.DB) {
	if bus != nil {
		bus.Close()
	}
	_ = db.Close()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
