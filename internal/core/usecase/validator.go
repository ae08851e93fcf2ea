package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

const IssueInvalidExtension = "invalid extension"

// Validator evaluates a staged file against its document type's rule set.
// Structural checks short-circuit; content checks accumulate.
type Validator struct{}

func NewValidator() Validator {
	return Validator{}
}

func (Validator) Evaluate(rules domain.RuleSet, file domain.FileMeta, extractedText string) domain.Verdict {
	if !rules.AllowsExtension(domain.ExtensionOf(file.Filename)) {
		return failVerdict(IssueInvalidExtension)
	}
	if file.SizeBytes > rules.MaxFileSizeBytes {
		return failVerdict(fmt.Sprintf("file too large: %d bytes exceeds limit of %d bytes", file.SizeBytes, rules.MaxFileSizeBytes))
	}

	issues := make([]string, 0)
	if words := countWords(extractedText); words < rules.MinWordCount {
		issues = append(issues, fmt.Sprintf("insufficient word count: %d (minimum %d)", words, rules.MinWordCount))
	}

	// Combined text across all pages: one matching page satisfies the requirement for the batch.
	haystack := strings.ToLower(extractedText)
	if len(rules.RequiredKeywords) > 0 && !containsAny(haystack, rules.RequiredKeywords) {
		for _, keyword := range rules.RequiredKeywords {
			issues = append(issues, fmt.Sprintf("missing required keyword: %s", keyword))
		}
	}

	// One forbidden hit anywhere fails the whole batch.
	for _, keyword := range rules.ForbiddenKeywords {
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			issues = append(issues, fmt.Sprintf("forbidden keyword present: %s", keyword))
		}
	}

	return domain.Verdict{Passed: len(issues) == 0, Issues: issues}
}

func failVerdict(issue string) domain.Verdict {
	return domain.Verdict{Passed: false, Issues: []string{issue}}
}

func containsAny(haystack string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
