package domain

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseRuleSetNormalizesCommaSeparatedInput(t *testing.T) {
	rs, err := ParseRuleSet("syllabus", RuleSetInput{
		RequiredKeywords:  " Vision, Mission ,vision,, ",
		ForbiddenKeywords: "Draft",
		AllowedExtensions: "PDF, .Docx,pdf",
		MaxFileSizeMB:     5,
		MinWordCount:      50,
	})
	if err != nil {
		t.Fatalf("ParseRuleSet() error = %v", err)
	}
	if !reflect.DeepEqual(rs.RequiredKeywords, []string{"Vision", "Mission"}) {
		t.Fatalf("unexpected required keywords: %#v", rs.RequiredKeywords)
	}
	if !reflect.DeepEqual(rs.AllowedExtensions, []string{".pdf", ".docx"}) {
		t.Fatalf("unexpected extensions: %#v", rs.AllowedExtensions)
	}
	if rs.MaxFileSizeBytes != 5*1024*1024 {
		t.Fatalf("expected 5MB ceiling, got %d", rs.MaxFileSizeBytes)
	}
}

func TestParseRuleSetRejectsEmptyExtensions(t *testing.T) {
	_, err := ParseRuleSet("syllabus", RuleSetInput{AllowedExtensions: " , ", MaxFileSizeMB: 1})
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "extensions") {
		t.Fatalf("expected extension message, got %v", err)
	}
}

func TestParseRuleSetRejectsNonPositiveSize(t *testing.T) {
	_, err := ParseRuleSet("syllabus", RuleSetInput{AllowedExtensions: "pdf", MaxFileSizeMB: 0})
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAllowsExtension(t *testing.T) {
	rs, err := NewRuleSet(RuleSet{DocumentTypeID: "x", AllowedExtensions: []string{"pdf"}, MaxFileSizeBytes: 1})
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	if !rs.AllowsExtension(".PDF") {
		t.Fatalf("expected .PDF to be allowed")
	}
	if rs.AllowsExtension(".docx") {
		t.Fatalf("expected .docx to be refused")
	}
}
