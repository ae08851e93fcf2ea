package ruleconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

// File is the seed format for document types and their rule sets.
//
//	document_types:
//	  - id: syllabus
//	    name: Syllabus
//	    folder: Syllabi
//	    required: true
//	    active: true
//	    rules:
//	      required_keywords: "Vision, Mission"
//	      allowed_extensions: ".pdf,.docx"
//	      max_file_size_mb: 10
//	      min_word_count: 50
type File struct {
	DocumentTypes []Entry `yaml:"document_types"`
}

type Entry struct {
	domain.DocumentType `yaml:",inline"`
	Rules               *domain.RuleSetInput `yaml:"rules"`
}

func LoadFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read rule file: %w", err)
	}
	return Decode(bytes.NewReader(raw))
}

func Decode(r io.Reader) (File, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, domain.WrapError(domain.ErrInvalidInput, "decode rule file", err)
	}

	seen := make(map[string]struct{}, len(file.DocumentTypes))
	for i, entry := range file.DocumentTypes {
		if err := entry.DocumentType.Validate(); err != nil {
			return File{}, fmt.Errorf("document_types[%d]: %w", i, err)
		}
		if _, dup := seen[entry.ID]; dup {
			return File{}, domain.WrapError(domain.ErrInvalidInput, "decode rule file", fmt.Errorf("duplicate document type %q", entry.ID))
		}
		seen[entry.ID] = struct{}{}
	}
	return file, nil
}

// Apply saves every document type, then its rule set when one is given.
func Apply(ctx context.Context, admin ports.RuleAdmin, file File) (int, error) {
	applied := 0
	for _, entry := range file.DocumentTypes {
		if err := admin.SaveDocumentType(ctx, entry.DocumentType); err != nil {
			return applied, fmt.Errorf("save document type %s: %w", entry.ID, err)
		}
		if entry.Rules != nil {
			if _, err := admin.SaveRuleSet(ctx, entry.ID, *entry.Rules); err != nil {
				return applied, fmt.Errorf("save rule set %s: %w", entry.ID, err)
			}
		}
		applied++
	}
	return applied, nil
}
