package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

const (
	stagingKeyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	stagingKeyLength   = 21
)

type submitter interface {
	CheckRules(ctx context.Context, identity domain.Identity) error
	Submit(ctx context.Context, req ports.SubmitRequest) (*domain.Submission, error)
}

type UploadConfig struct {
	StagingPrefix string
	AutoAnalysis  bool
}

// UploadUseCase is the faculty front door: stage the file, extract its text, hand it to the pipeline.
type UploadUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	pipeline  submitter
	queue     ports.EventBus
	cfg       UploadConfig
	logger    *zap.Logger
	newKey    func() (string, error)
}

func NewUploadUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	pipeline submitter,
	queue ports.EventBus,
	cfg UploadConfig,
	logger *zap.Logger,
) *UploadUseCase {
	if strings.TrimSpace(cfg.StagingPrefix) == "" {
		cfg.StagingPrefix = "staging"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadUseCase{
		storage:   storage,
		extractor: extractor,
		pipeline:  pipeline,
		queue:     queue,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "upload")),
		newKey: func() (string, error) {
			return gonanoid.Generate(stagingKeyAlphabet, stagingKeyLength)
		},
	}
}

func (uc *UploadUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*domain.Submission, error) {
	if err := req.Identity.Validate(); err != nil {
		return nil, err
	}
	if req.Body == nil || strings.TrimSpace(req.Filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file is required"))
	}

	// Unknown document types and missing rule sets fail before anything is staged.
	if err := uc.pipeline.CheckRules(ctx, req.Identity); err != nil {
		return nil, err
	}

	key, err := uc.newKey()
	if err != nil {
		return nil, fmt.Errorf("generate staging key: %w", err)
	}
	stagingID := path.Join(uc.cfg.StagingPrefix, key+"_"+domain.SanitizeName(req.Filename))

	if err := uc.storage.Save(ctx, stagingID, req.Body, req.SizeBytes, req.ContentType); err != nil {
		return nil, fmt.Errorf("save to staging: %w", err)
	}

	text := uc.extract(ctx, stagingID, req.Filename)

	sub, err := uc.pipeline.Submit(ctx, ports.SubmitRequest{
		Identity: req.Identity,
		File: domain.FileMeta{
			Filename:        req.Filename,
			ContentType:     req.ContentType,
			SizeBytes:       req.SizeBytes,
			StagingObjectID: stagingID,
			Section:         req.Section,
		},
		ExtractedText: text,
		Actor:         req.Actor,
	})
	if err != nil {
		// Submit writes nothing on failure, so no row points at the staged file; drop it.
		if delErr := uc.storage.Delete(context.WithoutCancel(ctx), stagingID); delErr != nil {
			uc.logger.Warn("staged_upload_cleanup_failed",
				zap.String("staging_object_id", stagingID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	if uc.cfg.AutoAnalysis && uc.queue != nil {
		if err := uc.queue.PublishAnalysisRequested(ctx, sub.ID); err != nil {
			uc.logger.Warn("analysis_request_publish_failed",
				zap.String("submission_id", sub.ID),
				zap.Error(err),
			)
		}
	}
	return sub, nil
}

// extract never fails the upload; unreadable files are validated with empty text.
func (uc *UploadUseCase) extract(ctx context.Context, objectID, filename string) string {
	if uc.extractor == nil {
		return ""
	}
	text, err := uc.extractor.Extract(ctx, objectID, filename)
	if err != nil {
		uc.logger.Warn("text_extraction_failed",
			zap.String("staging_object_id", objectID),
			zap.String("filename", filename),
			zap.Error(err),
		)
		return ""
	}
	return text
}
