package ruleconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

const sampleFile = `
document_types:
  - id: syllabus
    name: Syllabus
    folder: Syllabi
    required: true
    active: true
    rules:
      required_keywords: "Vision, Mission"
      forbidden_keywords: "Draft"
      allowed_extensions: ".pdf,.docx"
      max_file_size_mb: 10
      min_word_count: 50
  - id: memo
    name: Memo
    active: false
`

type recordingAdmin struct {
	types []domain.DocumentType
	rules map[string]domain.RuleSetInput
}

func (r *recordingAdmin) ListDocumentTypes(context.Context, bool) ([]domain.DocumentType, error) {
	return r.types, nil
}

func (r *recordingAdmin) SaveDocumentType(_ context.Context, docType domain.DocumentType) error {
	r.types = append(r.types, docType)
	return nil
}

func (r *recordingAdmin) GetRuleSet(context.Context, string) (*domain.RuleSet, error) {
	return nil, domain.ErrRuleSetNotFound
}

func (r *recordingAdmin) SaveRuleSet(_ context.Context, id string, in domain.RuleSetInput) (*domain.RuleSet, error) {
	if r.rules == nil {
		r.rules = make(map[string]domain.RuleSetInput)
	}
	r.rules[id] = in
	rules, err := domain.ParseRuleSet(id, in)
	return &rules, err
}

func TestLoadFileAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleFile), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(file.DocumentTypes) != 2 {
		t.Fatalf("expected 2 document types, got %d", len(file.DocumentTypes))
	}
	syllabus := file.DocumentTypes[0]
	if !syllabus.RequiredByDefault || syllabus.Folder != "Syllabi" || syllabus.Rules == nil || syllabus.Rules.MinWordCount != 50 {
		t.Fatalf("unexpected entry %+v", syllabus)
	}

	admin := &recordingAdmin{}
	applied, err := Apply(context.Background(), admin, file)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if applied != 2 || len(admin.types) != 2 {
		t.Fatalf("expected 2 applied, got %d", applied)
	}
	if _, ok := admin.rules["memo"]; ok || len(admin.rules) != 1 {
		t.Fatalf("expected rules only for syllabus, got %+v", admin.rules)
	}
}

func TestDecodeRejectsDuplicates(t *testing.T) {
	_, err := Decode(strings.NewReader("document_types:\n  - id: a\n    name: A\n  - id: a\n    name: A2\n"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("document_types:\n  - id: a\n    name: A\n    colour: red\n"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
