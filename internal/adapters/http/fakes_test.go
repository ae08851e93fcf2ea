package httpadapter

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

type uploaderFake struct {
	got     ports.UploadRequest
	content string
	err     error
}

func (f *uploaderFake) Upload(_ context.Context, req ports.UploadRequest) (*domain.Submission, error) {
	f.got = req
	raw, _ := io.ReadAll(req.Body)
	f.content = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Submission{ID: "s-1", Identity: req.Identity, Version: 1, Filename: req.Filename, Status: domain.StatusValidated}, nil
}

type pipelineFake struct {
	action  domain.ReviewAction
	actor   string
	remarks string
	scope   domain.ScopeFilter
	err     error
	calls   int
}

func (f *pipelineFake) Submit(context.Context, ports.SubmitRequest) (*domain.Submission, error) {
	return nil, nil
}

func (f *pipelineFake) RunContentAnalysis(_ context.Context, id string) (*domain.Submission, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Submission{ID: id, Analysis: &domain.AnalysisResult{Status: domain.AnalysisClean}}, nil
}

func (f *pipelineFake) ReviewerAction(_ context.Context, id string, action domain.ReviewAction, actor, remarks string) (*domain.ReviewOutcome, error) {
	f.calls++
	f.action, f.actor, f.remarks = action, actor, remarks
	if f.err != nil {
		return nil, f.err
	}
	target, _ := action.Target()
	return &domain.ReviewOutcome{
		Submission: &domain.Submission{ID: id, Status: target},
		Transition: domain.Transition{SubmissionID: id, From: domain.StatusValidated, To: target, Actor: actor},
	}, nil
}

func (f *pipelineFake) ApproveAll(_ context.Context, scope domain.ScopeFilter, actor string) (domain.BatchResult, error) {
	f.calls++
	f.scope, f.actor = scope, actor
	return domain.BatchResult{
		Succeeded: 1,
		Failed:    1,
		Items: []domain.BatchItem{
			{SubmissionID: "a", Status: domain.StatusApproved},
			{SubmissionID: "b", Status: domain.StatusValidated, Error: "promotion failed"},
		},
	}, nil
}

type readerFake struct {
	limit int
	to    domain.Status
	err   error
}

func (f *readerFake) GetSubmission(_ context.Context, id string) (*domain.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Submission{ID: id, Status: domain.StatusValidated}, nil
}

func (f *readerFake) ListVersions(context.Context, string) ([]domain.Submission, error) {
	return []domain.Submission{{ID: "s-1", Version: 1}, {ID: "s-2", Version: 2}}, nil
}

func (f *readerFake) ListTransitions(context.Context, string) ([]domain.Transition, error) {
	return []domain.Transition{{ID: 1, To: domain.StatusValidated}}, nil
}

func (f *readerFake) RecentTransitions(_ context.Context, to domain.Status, limit int) ([]domain.Transition, error) {
	f.to, f.limit = to, limit
	return []domain.Transition{{ID: 9, To: to, CreatedAt: time.Now()}}, nil
}

type rulesFake struct {
	savedType  domain.DocumentType
	savedInput domain.RuleSetInput
	err        error
}

func (f *rulesFake) ListDocumentTypes(context.Context, bool) ([]domain.DocumentType, error) {
	return []domain.DocumentType{{ID: "syllabus", Name: "Syllabus"}}, nil
}

func (f *rulesFake) SaveDocumentType(_ context.Context, docType domain.DocumentType) error {
	f.savedType = docType
	return f.err
}

func (f *rulesFake) GetRuleSet(_ context.Context, id string) (*domain.RuleSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RuleSet{DocumentTypeID: id, AllowedExtensions: []string{".pdf"}, MaxFileSizeBytes: 1 << 20}, nil
}

func (f *rulesFake) SaveRuleSet(_ context.Context, id string, in domain.RuleSetInput) (*domain.RuleSet, error) {
	f.savedInput = in
	if f.err != nil {
		return nil, f.err
	}
	rules, err := domain.ParseRuleSet(id, in)
	return &rules, err
}

type testDeps struct {
	uploader *uploaderFake
	pipeline *pipelineFake
	reader   *readerFake
	rules    *rulesFake
}

func newTestHandler(t *testing.T, opts Options) (http.Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		uploader: &uploaderFake{},
		pipeline: &pipelineFake{},
		reader:   &readerFake{},
		rules:    &rulesFake{},
	}
	router, err := NewRouter(context.Background(), Dependencies{
		Uploader: deps.uploader,
		Pipeline: deps.pipeline,
		Reader:   deps.reader,
		Rules:    deps.rules,
	}, opts, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler(), deps
}
