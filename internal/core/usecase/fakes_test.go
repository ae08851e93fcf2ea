package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

type memRepo struct {
	mu          sync.Mutex
	subs        map[string]*domain.Submission
	transitions []domain.Transition
	nextTrID    int64

	recordErr    error
	promotionErr error
	applyErr     error
	promotions   int
}

func newMemRepo() *memRepo {
	return &memRepo{subs: make(map[string]*domain.Submission)}
}

func (r *memRepo) put(sub domain.Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := sub
	r.subs[sub.ID] = &cp
}

func (r *memRepo) RecordVersion(_ context.Context, identity domain.Identity, build ports.VersionBuilder) (*domain.Submission, domain.Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current *domain.Submission
	for _, s := range r.subs {
		if s.Identity == identity && s.Current {
			cp := *s
			current = &cp
		}
	}
	built, err := build(current)
	if err != nil {
		return nil, domain.Transition{}, err
	}
	if r.recordErr != nil {
		return nil, domain.Transition{}, r.recordErr
	}
	if current != nil {
		r.subs[current.ID].Current = false
	}
	next := built.Submission
	cp := *next
	r.subs[next.ID] = &cp
	r.nextTrID++
	settled := built.Settled
	settled.ID = r.nextTrID
	r.transitions = append(r.transitions, settled)
	return next, settled, nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("id %s", id))
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) ListVersions(_ context.Context, identity domain.Identity) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Submission{}
	for _, s := range r.subs {
		if s.Identity == identity {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *memRepo) ListPending(_ context.Context, scope domain.ScopeFilter) ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Submission{}
	for _, s := range r.subs {
		if s.Current && s.Status.AwaitingReview() && scope.Matches(s.Identity) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ApplyTransition(_ context.Context, sub *domain.Submission, tr domain.Transition) (domain.Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return domain.Transition{}, r.applyErr
	}
	stored, ok := r.subs[sub.ID]
	if !ok {
		return domain.Transition{}, domain.ErrSubmissionNotFound
	}
	if stored.Status != tr.From {
		return domain.Transition{}, domain.WrapError(domain.ErrStaleState, "apply transition", fmt.Errorf("status is %s", stored.Status))
	}
	cp := *sub
	r.subs[sub.ID] = &cp
	r.nextTrID++
	tr.ID = r.nextTrID
	r.transitions = append(r.transitions, tr)
	return tr, nil
}

func (r *memRepo) SavePromotion(_ context.Context, id, vaultObjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.promotionErr != nil {
		return r.promotionErr
	}
	s, ok := r.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	r.promotions++
	s.VaultObjectID = vaultObjectID
	s.StagingObjectID = ""
	s.Staged = false
	return nil
}

func (r *memRepo) SaveAnalysis(_ context.Context, id string, result domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	cp := result
	s.Analysis = &cp
	return nil
}

func (r *memRepo) ListTransitions(_ context.Context, submissionID string) ([]domain.Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Transition{}
	for _, tr := range r.transitions {
		if tr.SubmissionID == submissionID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (r *memRepo) ListRecentTransitions(_ context.Context, to domain.Status, limit int) ([]domain.Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Transition{}
	for i := len(r.transitions) - 1; i >= 0 && len(out) < limit; i-- {
		if to == "" || r.transitions[i].To == to {
			out = append(out, r.transitions[i])
		}
	}
	return out, nil
}

func (r *memRepo) transitionsTo(to domain.Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tr := range r.transitions {
		if tr.To == to {
			n++
		}
	}
	return n
}

type memRules struct {
	docTypes map[string]domain.DocumentType
	rules    map[string]domain.RuleSet
}

func newMemRules() *memRules {
	return &memRules{
		docTypes: make(map[string]domain.DocumentType),
		rules:    make(map[string]domain.RuleSet),
	}
}

func (m *memRules) GetDocumentType(_ context.Context, id string) (*domain.DocumentType, error) {
	d, ok := m.docTypes[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentTypeNotFound, "get document type", fmt.Errorf("id %s", id))
	}
	return &d, nil
}

func (m *memRules) ListDocumentTypes(_ context.Context, activeOnly bool) ([]domain.DocumentType, error) {
	out := []domain.DocumentType{}
	for _, d := range m.docTypes {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRules) SaveDocumentType(_ context.Context, d domain.DocumentType) error {
	m.docTypes[d.ID] = d
	return nil
}

func (m *memRules) GetRuleSet(_ context.Context, id string) (*domain.RuleSet, error) {
	rs, ok := m.rules[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRuleSetNotFound, "get rule set", fmt.Errorf("document type %s", id))
	}
	return &rs, nil
}

func (m *memRules) SaveRuleSet(_ context.Context, rs domain.RuleSet) error {
	m.rules[rs.DocumentTypeID] = rs
	return nil
}

// memStorage is an object store keyed by object id.
type memStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	containers map[string]bool

	saveErr   error
	moveErr   error
	deleteErr error
	existsErr error
	// moveLandsThenFails simulates an ambiguous move: the object lands but the call errors.
	moveLandsThenFails bool

	moves   int
	deletes []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte), containers: make(map[string]bool)}
}

func (s *memStorage) Save(_ context.Context, id string, data io.Reader, _ int64, _ string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[id] = raw
	return nil
}

func (s *memStorage) Open(_ context.Context, id string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.objects[id]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *memStorage) Move(_ context.Context, id, target string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveErr != nil {
		return "", s.moveErr
	}
	raw, ok := s.objects[id]
	if !ok {
		return "", errors.New("object not found")
	}
	s.moves++
	s.objects[target] = raw
	delete(s.objects, id)
	if s.moveLandsThenFails {
		s.moveLandsThenFails = false
		return "", context.DeadlineExceeded
	}
	return target, nil
}

func (s *memStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes = append(s.deletes, id)
	delete(s.objects, id)
	return nil
}

func (s *memStorage) EnsureContainer(_ context.Context, container string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[container] = true
	return container, nil
}

func (s *memStorage) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.objects[id]
	return ok, nil
}

func (s *memStorage) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok
}

func (s *memStorage) countWithPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.objects {
		if strings.HasPrefix(id, prefix) {
			n++
		}
	}
	return n
}

// storageText extracts by reading the stored bytes as text.
type storageText struct {
	storage *memStorage
	err     error
}

func (e *storageText) Extract(ctx context.Context, objectID, _ string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	rc, err := e.storage.Open(ctx, objectID)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type analyzerFake struct {
	result domain.AnalysisResult
	err    error
	text   string
}

func (a *analyzerFake) Analyze(_ context.Context, _ *domain.Submission, _ *domain.DocumentType, text string) (domain.AnalysisResult, error) {
	a.text = text
	if a.err != nil {
		return domain.AnalysisResult{}, a.err
	}
	return a.result, nil
}

type eventsFake struct {
	mu          sync.Mutex
	analysis    []string
	transitions []domain.Transition
	err         error
}

func (e *eventsFake) PublishAnalysisRequested(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.analysis = append(e.analysis, id)
	return nil
}

func (e *eventsFake) SubscribeAnalysisRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (e *eventsFake) PublishTransition(_ context.Context, tr domain.Transition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.transitions = append(e.transitions, tr)
	return nil
}

type metricsFake struct {
	mu              sync.Mutex
	promotions      map[string]int
	discardWarnings int
	batches         [][2]int
	analyses        []string
}

func newMetricsFake() *metricsFake {
	return &metricsFake{promotions: make(map[string]int)}
}

func (m *metricsFake) ObserveSubmission(domain.Status) {}

func (m *metricsFake) ObservePromotion(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions[outcome]++
}

func (m *metricsFake) ObserveDiscardWarning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardWarnings++
}

func (m *metricsFake) ObserveBatch(succeeded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, [2]int{succeeded, failed})
}

func (m *metricsFake) ObserveAnalysis(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, status)
}

// harness wires the full pipeline over in-memory fakes.
type harness struct {
	repo     *memRepo
	rules    *memRules
	storage  *memStorage
	events   *eventsFake
	metrics  *metricsFake
	staging  *StagingCoordinator
	pipeline *SubmissionPipeline
	upload   *UploadUseCase
}

func testIdentity() domain.Identity {
	return domain.Identity{
		FacultyID:      "f-42",
		CourseID:       "CS 101",
		DocumentTypeID: "syllabus",
		Semester:       "1st",
		AcademicYear:   "2025-2026",
	}
}

func pipelineRules() domain.RuleSet {
	return domain.RuleSet{
		DocumentTypeID:    "syllabus",
		RequiredKeywords:  []string{"Vision"},
		ForbiddenKeywords: []string{"Draft"},
		AllowedExtensions: []string{".pdf", ".txt"},
		MaxFileSizeBytes:  5 * 1024 * 1024,
		MinWordCount:      3,
	}
}

func newHarness(analyzer ports.ContentAnalyzer) *harness {
	h := &harness{
		repo:    newMemRepo(),
		rules:   newMemRules(),
		storage: newMemStorage(),
		events:  &eventsFake{},
		metrics: newMetricsFake(),
	}
	h.rules.docTypes["syllabus"] = domain.DocumentType{ID: "syllabus", Name: "Syllabus", Folder: "Syllabus", Active: true}
	h.rules.rules["syllabus"] = pipelineRules()

	h.staging = NewStagingCoordinator(h.storage, h.repo, h.rules, StagingConfig{VaultRoot: "vault"}, nil, h.metrics)
	lifecycle := NewLifecycleMachine(h.repo, h.staging, h.events, nil, h.metrics)
	extractor := &storageText{storage: h.storage}
	h.pipeline = NewSubmissionPipeline(
		NewVersionLedger(h.repo),
		lifecycle,
		h.repo,
		h.rules,
		extractor,
		analyzer,
		PipelineConfig{ApproveAllConcurrency: 2},
		nil,
		h.metrics,
	)
	h.upload = NewUploadUseCase(h.storage, extractor, h.pipeline, h.events, UploadConfig{StagingPrefix: "staging"}, nil)
	return h
}

// uploadText stages body as a .txt file for identity and submits it.
func (h *harness) uploadText(identity domain.Identity, body string) (*domain.Submission, error) {
	return h.upload.Upload(context.Background(), ports.UploadRequest{
		Identity:    identity,
		Filename:    "syllabus.txt",
		ContentType: "text/plain",
		SizeBytes:   int64(len(body)),
		Body:        strings.NewReader(body),
		Actor:       "faculty-1",
	})
}
