package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const bytesPerMB = 1024 * 1024

type DocumentType struct {
	ID                string    `json:"id" db:"id" yaml:"id"`
	Name              string    `json:"name" db:"name" yaml:"name"`
	Folder            string    `json:"folder" db:"folder" yaml:"folder"`
	RequiredByDefault bool      `json:"required_by_default" db:"required_by_default" yaml:"required"`
	Active            bool      `json:"active" db:"active" yaml:"active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

func (d DocumentType) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return WrapError(ErrInvalidInput, "validate document type", errors.New("id is required"))
	}
	if strings.TrimSpace(d.Name) == "" {
		return WrapError(ErrInvalidInput, "validate document type", errors.New("name is required"))
	}
	return nil
}

// RuleSet is the structured validation configuration for one document type.
type RuleSet struct {
	DocumentTypeID    string    `json:"document_type_id"`
	RequiredKeywords  []string  `json:"required_keywords"`
	ForbiddenKeywords []string  `json:"forbidden_keywords"`
	AllowedExtensions []string  `json:"allowed_extensions"`
	MaxFileSizeBytes  int64     `json:"max_file_size_bytes"`
	MinWordCount      int       `json:"min_word_count"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RuleSetInput is the loosely typed form admins edit: comma-separated lists and a size in MB.
type RuleSetInput struct {
	RequiredKeywords  string  `json:"required_keywords" yaml:"required_keywords"`
	ForbiddenKeywords string  `json:"forbidden_keywords" yaml:"forbidden_keywords"`
	AllowedExtensions string  `json:"allowed_extensions" yaml:"allowed_extensions"`
	MaxFileSizeMB     float64 `json:"max_file_size_mb" yaml:"max_file_size_mb"`
	MinWordCount      int     `json:"min_word_count" yaml:"min_word_count"`
}

func ParseRuleSet(documentTypeID string, in RuleSetInput) (RuleSet, error) {
	if in.MaxFileSizeMB <= 0 || math.IsNaN(in.MaxFileSizeMB) || math.IsInf(in.MaxFileSizeMB, 0) {
		return RuleSet{}, WrapError(ErrInvalidInput, "parse rule set", fmt.Errorf("max_file_size_mb must be > 0, got %v", in.MaxFileSizeMB))
	}
	return NewRuleSet(RuleSet{
		DocumentTypeID:    documentTypeID,
		RequiredKeywords:  SplitList(in.RequiredKeywords),
		ForbiddenKeywords: SplitList(in.ForbiddenKeywords),
		AllowedExtensions: SplitList(in.AllowedExtensions),
		MaxFileSizeBytes:  int64(in.MaxFileSizeMB * bytesPerMB),
		MinWordCount:      in.MinWordCount,
	})
}

// NewRuleSet normalizes lists and enforces the rule-set invariants.
func NewRuleSet(rs RuleSet) (RuleSet, error) {
	rs.DocumentTypeID = strings.TrimSpace(rs.DocumentTypeID)
	if rs.DocumentTypeID == "" {
		return RuleSet{}, WrapError(ErrInvalidInput, "new rule set", errors.New("document type id is required"))
	}
	rs.RequiredKeywords = dedupeFold(rs.RequiredKeywords)
	rs.ForbiddenKeywords = dedupeFold(rs.ForbiddenKeywords)

	exts := make([]string, 0, len(rs.AllowedExtensions))
	for _, raw := range rs.AllowedExtensions {
		if ext := NormalizeExtension(raw); ext != "" {
			exts = append(exts, ext)
		}
	}
	rs.AllowedExtensions = dedupeFold(exts)

	if len(rs.AllowedExtensions) == 0 {
		return RuleSet{}, WrapError(ErrInvalidInput, "new rule set", errors.New("allowed extensions must not be empty"))
	}
	if rs.MaxFileSizeBytes <= 0 {
		return RuleSet{}, WrapError(ErrInvalidInput, "new rule set", errors.New("max file size must be > 0"))
	}
	if rs.MinWordCount < 0 {
		return RuleSet{}, WrapError(ErrInvalidInput, "new rule set", errors.New("min word count must be >= 0"))
	}
	return rs, nil
}

func (rs RuleSet) AllowsExtension(ext string) bool {
	ext = NormalizeExtension(ext)
	for _, allowed := range rs.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// NormalizeExtension lowercases and guarantees a single leading dot; "" stays "".
func NormalizeExtension(raw string) string {
	ext := strings.ToLower(strings.TrimSpace(raw))
	ext = strings.TrimLeft(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + ext
}

// SplitList splits the comma-separated admin form, dropping blanks.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func dedupeFold(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
