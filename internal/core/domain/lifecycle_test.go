package domain

import "testing"

func TestCheckTransitionAllowsReviewExits(t *testing.T) {
	for _, from := range []Status{StatusValidated, StatusFailed} {
		for _, to := range []Status{StatusApproved, StatusRejected, StatusRevisionRequested} {
			if err := CheckTransition(from, to); err != nil {
				t.Fatalf("expected %s -> %s to be legal, got %v", from, to, err)
			}
		}
	}
}

func TestCheckTransitionRejectsIllegalPairs(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusSubmitted, StatusApproved},
		{StatusApproved, StatusRejected},
		{StatusRejected, StatusApproved},
		{StatusRevisionRequested, StatusApproved},
		{StatusArchived, StatusSubmitted},
		{StatusValidated, StatusFailed},
		{Status("bogus"), StatusApproved},
	}
	for _, tc := range cases {
		err := CheckTransition(tc.from, tc.to)
		if err == nil {
			t.Fatalf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
		if !IsKind(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition for %s -> %s, got %v", tc.from, tc.to, err)
		}
	}
}

func TestStatusForVerdict(t *testing.T) {
	if got := StatusForVerdict(Verdict{Passed: true}); got != StatusValidated {
		t.Fatalf("expected validated, got %s", got)
	}
	if got := StatusForVerdict(Verdict{Passed: false, Issues: []string{"x"}}); got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestBlocksResubmission(t *testing.T) {
	blocking := []Status{StatusSubmitted, StatusValidated, StatusFailed}
	for _, s := range blocking {
		if !s.BlocksResubmission() {
			t.Fatalf("expected %s to block resubmission", s)
		}
	}
	open := []Status{StatusApproved, StatusRejected, StatusRevisionRequested, StatusArchived}
	for _, s := range open {
		if s.BlocksResubmission() {
			t.Fatalf("expected %s to allow resubmission", s)
		}
	}
}

func TestParseReviewAction(t *testing.T) {
	action, err := ParseReviewAction(" Approve ")
	if err != nil {
		t.Fatalf("ParseReviewAction() error = %v", err)
	}
	if action != ActionApprove {
		t.Fatalf("expected approve, got %s", action)
	}
	if _, err := ParseReviewAction("archive"); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown action, got %v", err)
	}
}
