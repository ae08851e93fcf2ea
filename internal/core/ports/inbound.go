package ports

import (
	"context"
	"io"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

// UploadRequest is what the faculty submission UI sends.
type UploadRequest struct {
	Identity    domain.Identity
	Section     string
	Filename    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
	Actor       string
}

// SubmitRequest enters the pipeline once the file sits in staging and its text is extracted.
type SubmitRequest struct {
	Identity      domain.Identity
	File          domain.FileMeta
	ExtractedText string
	Actor         string
}

// SubmissionUploader is the inbound contract for faculty uploads.
type SubmissionUploader interface {
	Upload(ctx context.Context, req UploadRequest) (*domain.Submission, error)
}

// SubmissionPipeline is the inbound contract for the submission lifecycle.
type SubmissionPipeline interface {
	Submit(ctx context.Context, req SubmitRequest) (*domain.Submission, error)
	RunContentAnalysis(ctx context.Context, submissionID string) (*domain.Submission, error)
	ReviewerAction(ctx context.Context, submissionID string, action domain.ReviewAction, actor, remarks string) (*domain.ReviewOutcome, error)
	ApproveAll(ctx context.Context, scope domain.ScopeFilter, actor string) (domain.BatchResult, error)
}

// SubmissionReader is the inbound read model for submissions and their history.
type SubmissionReader interface {
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)
	ListVersions(ctx context.Context, id string) ([]domain.Submission, error)
	ListTransitions(ctx context.Context, id string) ([]domain.Transition, error)
	RecentTransitions(ctx context.Context, to domain.Status, limit int) ([]domain.Transition, error)
}

// RuleAdmin is the inbound contract for the rule configuration surface.
type RuleAdmin interface {
	ListDocumentTypes(ctx context.Context, activeOnly bool) ([]domain.DocumentType, error)
	SaveDocumentType(ctx context.Context, docType domain.DocumentType) error
	GetRuleSet(ctx context.Context, documentTypeID string) (*domain.RuleSet, error)
	SaveRuleSet(ctx context.Context, documentTypeID string, in domain.RuleSetInput) (*domain.RuleSet, error)
}
