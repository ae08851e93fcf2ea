package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

// NewVersion is a version row built with its initial status already settled,
// plus the SUBMITTED exit transition stored alongside it.
type NewVersion struct {
	Submission *domain.Submission
	Settled    domain.Transition
}

// VersionBuilder decides the next version from the current one (nil when the slot is empty).
type VersionBuilder func(current *domain.Submission) (NewVersion, error)

// SubmissionRepository persists submissions and their append-only transition log.
type SubmissionRepository interface {
	// RecordVersion runs build and, in one transaction serialized per identity, clears the
	// previous row's current marker, inserts the new row and appends its settled transition.
	RecordVersion(ctx context.Context, identity domain.Identity, build VersionBuilder) (*domain.Submission, domain.Transition, error)
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	ListVersions(ctx context.Context, identity domain.Identity) ([]domain.Submission, error)
	ListPending(ctx context.Context, scope domain.ScopeFilter) ([]domain.Submission, error)
	// ApplyTransition persists sub's status, issues, storage pointers and decision timestamps and
	// appends tr, only if the stored status still equals tr.From.
	ApplyTransition(ctx context.Context, sub *domain.Submission, tr domain.Transition) (domain.Transition, error)
	SavePromotion(ctx context.Context, id, vaultObjectID string) error
	SaveAnalysis(ctx context.Context, id string, result domain.AnalysisResult) error
	ListTransitions(ctx context.Context, submissionID string) ([]domain.Transition, error)
	ListRecentTransitions(ctx context.Context, to domain.Status, limit int) ([]domain.Transition, error)
}

// RuleStore holds document types and their rule sets.
type RuleStore interface {
	GetDocumentType(ctx context.Context, id string) (*domain.DocumentType, error)
	ListDocumentTypes(ctx context.Context, activeOnly bool) ([]domain.DocumentType, error)
	SaveDocumentType(ctx context.Context, docType domain.DocumentType) error
	GetRuleSet(ctx context.Context, documentTypeID string) (*domain.RuleSet, error)
	SaveRuleSet(ctx context.Context, rules domain.RuleSet) error
}

// ObjectStorage is the external object store holding staged and vaulted files.
type ObjectStorage interface {
	Save(ctx context.Context, objectID string, data io.Reader, size int64, contentType string) error
	Open(ctx context.Context, objectID string) (io.ReadCloser, error)
	// Move relocates objectID to targetID and returns the resulting object id.
	Move(ctx context.Context, objectID, targetID string) (string, error)
	// Delete removes objectID; a missing object is not an error.
	Delete(ctx context.Context, objectID string) error
	// EnsureContainer creates the container if absent and returns its id.
	EnsureContainer(ctx context.Context, container string) (string, error)
	Exists(ctx context.Context, objectID string) (bool, error)
}

// TextExtractor extracts plain text from a stored file. Multi-page files join pages with "\f".
type TextExtractor interface {
	Extract(ctx context.Context, objectID, filename string) (string, error)
}

// ContentAnalyzer is the optional automated secondary review ("bot check").
type ContentAnalyzer interface {
	Analyze(ctx context.Context, sub *domain.Submission, docType *domain.DocumentType, text string) (domain.AnalysisResult, error)
}

// EventBus carries analysis jobs and transition notifications.
type EventBus interface {
	PublishAnalysisRequested(ctx context.Context, submissionID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, string) error) error
	PublishTransition(ctx context.Context, tr domain.Transition) error
}

// PipelineMetrics receives pipeline observations.
type PipelineMetrics interface {
	ObserveSubmission(status domain.Status)
	ObservePromotion(outcome string, duration time.Duration)
	ObserveDiscardWarning()
	ObserveBatch(succeeded, failed int)
	ObserveAnalysis(status string)
}
