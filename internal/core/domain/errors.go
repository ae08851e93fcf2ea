package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrDocumentTypeNotFound = errors.New("document type not found")
	ErrRuleSetNotFound      = errors.New("rule set not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrTemporary            = errors.New("temporary failure")

	// ErrConflict means a non-terminal version of the same slot blocks a new submission.
	ErrConflict = errors.New("submission conflict")
	// ErrStaleState means the submission changed under the caller (lost race).
	ErrStaleState        = errors.New("stale submission state")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPromotionFailed means the staged object did not reach the vault; approval was not recorded.
	ErrPromotionFailed = errors.New("promotion failed")
	ErrConfiguration   = errors.New("configuration error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
