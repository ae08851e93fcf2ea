package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusSubmitted         Status = "submitted"
	StatusValidated         Status = "validated"
	StatusFailed            Status = "failed"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusRevisionRequested Status = "revision_requested"
	StatusArchived          Status = "archived"
)

// transitions is the only place legal from->to pairs are declared.
var transitions = map[Status][]Status{
	StatusSubmitted:         {StatusValidated, StatusFailed},
	StatusValidated:         {StatusApproved, StatusRejected, StatusRevisionRequested},
	StatusFailed:            {StatusApproved, StatusRejected, StatusRevisionRequested},
	StatusApproved:          {StatusArchived},
	StatusRejected:          {StatusArchived},
	StatusRevisionRequested: {StatusArchived},
	StatusArchived:          nil,
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", WrapError(ErrInvalidInput, "parse status", fmt.Errorf("unknown status %q", raw))
	}
	return s, nil
}

// AwaitingReview reports whether a reviewer may act on the submission.
func (s Status) AwaitingReview() bool {
	return s == StatusValidated || s == StatusFailed
}

// BlocksResubmission reports whether a new version for the same slot must be refused.
func (s Status) BlocksResubmission() bool {
	return s == StatusSubmitted || s.AwaitingReview()
}

// Decided reports whether the current version already carries a reviewer decision or is archived.
func (s Status) Decided() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusRevisionRequested, StatusArchived:
		return true
	default:
		return false
	}
}

func CheckTransition(from, to Status) error {
	allowed, ok := transitions[from]
	if !ok {
		return WrapError(ErrInvalidTransition, "check transition", fmt.Errorf("unknown status %q", from))
	}
	for _, candidate := range allowed {
		if candidate == to {
			return nil
		}
	}
	return WrapError(ErrInvalidTransition, "check transition", fmt.Errorf("%s -> %s", from, to))
}

// StatusForVerdict is the automatic SUBMITTED exit.
func StatusForVerdict(v Verdict) Status {
	if v.Passed {
		return StatusValidated
	}
	return StatusFailed
}

type ReviewAction string

const (
	ActionApprove         ReviewAction = "approve"
	ActionReject          ReviewAction = "reject"
	ActionRequestRevision ReviewAction = "request_revision"
)

func ParseReviewAction(raw string) (ReviewAction, error) {
	a := ReviewAction(strings.ToLower(strings.TrimSpace(raw)))
	if _, err := a.Target(); err != nil {
		return "", err
	}
	return a, nil
}

func (a ReviewAction) Target() (Status, error) {
	switch a {
	case ActionApprove:
		return StatusApproved, nil
	case ActionReject:
		return StatusRejected, nil
	case ActionRequestRevision:
		return StatusRevisionRequested, nil
	default:
		return "", WrapError(ErrInvalidInput, "review action", fmt.Errorf("unknown action %q", string(a)))
	}
}
