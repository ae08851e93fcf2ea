package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

const (
	defaultApproveAllConcurrency = 4
	defaultAnalysisTimeout       = 60 * time.Second
	defaultRecentLimit           = 20
	maxRecentLimit               = 200

	bulkApprovalRemarks = "bulk approval"
)

type PipelineConfig struct {
	ApproveAllConcurrency int
	AnalysisTimeout       time.Duration
}

// SubmissionPipeline is the entry point for every operation that mutates a submission.
type SubmissionPipeline struct {
	ledger    *VersionLedger
	validator Validator
	lifecycle *LifecycleMachine
	repo      ports.SubmissionRepository
	rules     ports.RuleStore
	extractor ports.TextExtractor
	analyzer  ports.ContentAnalyzer
	locks     *keyedMutex
	cfg       PipelineConfig
	logger    *zap.Logger
	metrics   ports.PipelineMetrics
	now       func() time.Time
}

func NewSubmissionPipeline(
	ledger *VersionLedger,
	lifecycle *LifecycleMachine,
	repo ports.SubmissionRepository,
	rules ports.RuleStore,
	extractor ports.TextExtractor,
	analyzer ports.ContentAnalyzer,
	cfg PipelineConfig,
	logger *zap.Logger,
	metrics ports.PipelineMetrics,
) *SubmissionPipeline {
	if cfg.ApproveAllConcurrency <= 0 {
		cfg.ApproveAllConcurrency = defaultApproveAllConcurrency
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = defaultAnalysisTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SubmissionPipeline{
		ledger:    ledger,
		validator: NewValidator(),
		lifecycle: lifecycle,
		repo:      repo,
		rules:     rules,
		extractor: extractor,
		analyzer:  analyzer,
		locks:     newKeyedMutex(),
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "pipeline")),
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit evaluates the file and records it as a new version whose initial status is already
// settled. Validation issues come back on the submission, never as an error.
func (p *SubmissionPipeline) Submit(ctx context.Context, req ports.SubmitRequest) (*domain.Submission, error) {
	if err := req.Identity.Validate(); err != nil {
		return nil, err
	}
	rules, err := p.loadRules(ctx, req.Identity.DocumentTypeID)
	if err != nil {
		return nil, err
	}

	verdict := p.validator.Evaluate(*rules, req.File, req.ExtractedText)

	sub, settled, err := p.ledger.RecordVersion(ctx, req.Identity, req.File, func(next *domain.Submission) (domain.Transition, error) {
		return p.lifecycle.Settle(next, verdict)
	})
	if err != nil {
		return nil, err
	}
	p.lifecycle.Recorded(ctx, settled)

	p.logger.Info("submission_recorded",
		zap.String("submission_id", sub.ID),
		zap.String("identity", req.Identity.Key()),
		zap.Int("version", sub.Version),
		zap.String("status", string(sub.Status)),
		zap.Int("issues", len(sub.Issues)),
		zap.String("actor", req.Actor),
	)
	return sub, nil
}

// CheckRules reports whether identity can be submitted at all, without side effects.
func (p *SubmissionPipeline) CheckRules(ctx context.Context, identity domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	_, err := p.loadRules(ctx, identity.DocumentTypeID)
	return err
}

// loadRules aborts before any side effect when the document type cannot be validated.
func (p *SubmissionPipeline) loadRules(ctx context.Context, docTypeID string) (*domain.RuleSet, error) {
	docType, err := p.rules.GetDocumentType(ctx, docTypeID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentTypeNotFound) {
			return nil, domain.WrapError(domain.ErrConfiguration, "submit", err)
		}
		return nil, fmt.Errorf("load document type: %w", err)
	}
	if !docType.Active {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit", fmt.Errorf("document type %s is inactive", docTypeID))
	}

	rules, err := p.rules.GetRuleSet(ctx, docTypeID)
	if err != nil {
		if domain.IsKind(err, domain.ErrRuleSetNotFound) {
			return nil, domain.WrapError(domain.ErrConfiguration, "submit", err)
		}
		return nil, fmt.Errorf("load rule set: %w", err)
	}
	return rules, nil
}

// RunContentAnalysis annotates the submission with a bot-check result. Status is not changed.
func (p *SubmissionPipeline) RunContentAnalysis(ctx context.Context, submissionID string) (*domain.Submission, error) {
	if p.analyzer == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "run content analysis", errors.New("content analysis is disabled"))
	}

	sub, err := p.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	docType, err := p.rules.GetDocumentType(ctx, sub.Identity.DocumentTypeID)
	if err != nil {
		return nil, fmt.Errorf("load document type: %w", err)
	}

	text, err := p.extractCurrent(ctx, sub)
	if err != nil {
		p.metrics.ObserveAnalysis("error")
		return nil, err
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, p.cfg.AnalysisTimeout)
	defer cancel()

	result, err := p.analyzer.Analyze(analyzeCtx, sub, docType, text)
	if err != nil {
		p.metrics.ObserveAnalysis("error")
		return nil, fmt.Errorf("analyze submission %s: %w", sub.ID, err)
	}
	if result.Issues == nil {
		result.Issues = []string{}
	}
	if result.AnalyzedAt.IsZero() {
		result.AnalyzedAt = p.now()
	}

	if err := p.repo.SaveAnalysis(ctx, sub.ID, result); err != nil {
		p.metrics.ObserveAnalysis("error")
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	p.metrics.ObserveAnalysis(string(result.Status))

	sub.Analysis = &result
	p.logger.Info("content_analysis_completed",
		zap.String("submission_id", sub.ID),
		zap.String("analysis_status", string(result.Status)),
		zap.Int("issues", len(result.Issues)),
	)
	return sub, nil
}

// extractCurrent reads text from wherever the object lives now. A promotion may land between
// the read of the row and the read of the object, so one reload is attempted.
func (p *SubmissionPipeline) extractCurrent(ctx context.Context, sub *domain.Submission) (string, error) {
	if p.extractor == nil {
		return "", nil
	}

	extract := func(objectID string) (string, error) {
		extractCtx, cancel := context.WithTimeout(ctx, p.cfg.AnalysisTimeout)
		defer cancel()
		return p.extractor.Extract(extractCtx, objectID, sub.Filename)
	}

	objectID := sub.ObjectID()
	text, err := extract(objectID)
	if err == nil {
		return text, nil
	}

	fresh, reloadErr := p.repo.GetByID(ctx, sub.ID)
	if reloadErr != nil || fresh.ObjectID() == objectID {
		return "", fmt.Errorf("extract text from %s: %w", objectID, err)
	}
	*sub = *fresh
	text, err = extract(sub.ObjectID())
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", sub.ObjectID(), err)
	}
	return text, nil
}

// ReviewerAction applies approve, reject or request_revision. Operations on one submission are
// serialized; a decision against an already-decided submission returns ErrStaleState.
func (p *SubmissionPipeline) ReviewerAction(
	ctx context.Context,
	submissionID string,
	action domain.ReviewAction,
	actor, remarks string,
) (*domain.ReviewOutcome, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reviewer action", errors.New("actor is required"))
	}
	if _, err := action.Target(); err != nil {
		return nil, err
	}

	unlock := p.locks.Lock(submissionID)
	defer unlock()

	sub, err := p.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	outcome, err := p.lifecycle.Decide(ctx, sub, action, actor, strings.TrimSpace(remarks))
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveSubmission(outcome.Submission.Status)
	return outcome, nil
}

// ApproveAll approves every pending submission in scope. Each item is gated on its own
// promotion; one failure never stops the others.
func (p *SubmissionPipeline) ApproveAll(ctx context.Context, scope domain.ScopeFilter, actor string) (domain.BatchResult, error) {
	if strings.TrimSpace(actor) == "" {
		return domain.BatchResult{}, domain.WrapError(domain.ErrInvalidInput, "approve all", errors.New("actor is required"))
	}

	pending, err := p.repo.ListPending(ctx, scope)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("list pending submissions: %w", err)
	}

	items := make([]domain.BatchItem, len(pending))
	var mu sync.Mutex
	result := domain.BatchResult{}

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.ApproveAllConcurrency)
	for i := range pending {
		sub := pending[i]
		g.Go(func() error {
			item := domain.BatchItem{SubmissionID: sub.ID}
			outcome, err := p.ReviewerAction(ctx, sub.ID, domain.ActionApprove, actor, bulkApprovalRemarks)
			if err != nil {
				item.Status = sub.Status
				item.Error = err.Error()
				p.logger.Warn("bulk_approval_item_failed",
					zap.String("submission_id", sub.ID),
					zap.Error(err),
				)
			} else {
				item.Status = outcome.Submission.Status
			}

			mu.Lock()
			items[i] = item
			if err != nil {
				result.Failed++
			} else {
				result.Succeeded++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result.Items = items
	p.metrics.ObserveBatch(result.Succeeded, result.Failed)
	p.logger.Info("bulk_approval_completed",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.String("actor", actor),
	)
	return result, nil
}

func (p *SubmissionPipeline) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	return p.repo.GetByID(ctx, id)
}

// ListVersions returns the version chain of the slot the given submission belongs to.
func (p *SubmissionPipeline) ListVersions(ctx context.Context, id string) ([]domain.Submission, error) {
	sub, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.ledger.ListVersions(ctx, sub.Identity)
}

func (p *SubmissionPipeline) ListTransitions(ctx context.Context, id string) ([]domain.Transition, error) {
	if _, err := p.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return p.repo.ListTransitions(ctx, id)
}

func (p *SubmissionPipeline) RecentTransitions(ctx context.Context, to domain.Status, limit int) ([]domain.Transition, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return p.repo.ListRecentTransitions(ctx, to, limit)
}
