package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/infrastructure/resilience"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"no servers", fmt.Errorf("publish: %w", nats.ErrNoServers), true, true},
		{"closed", nats.ErrConnectionClosed, true, true},
		{"canceled", context.Canceled, false, false},
		{"bad subject", nats.ErrBadSubject, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyNATSError(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
				t.Fatalf("unexpected classification %+v", class)
			}
		})
	}
}

func TestPublishFailureBecomesTemporary(t *testing.T) {
	err := resilience.WrapTemporary("nats publish", fmt.Errorf("publish: %w", nats.ErrNoServers), classifyNATSError)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}

	err = resilience.WrapTemporary("nats publish", nats.ErrBadSubject, classifyNATSError)
	if domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrBadSubject) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestTransitionEventEncoding(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(newTransitionEvent(domain.Transition{
		ID: 7, SubmissionID: "s-1", From: domain.StatusValidated, To: domain.StatusApproved,
		Actor: "dean", CreatedAt: at,
	}))
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if decoded["from_status"] != string(domain.StatusValidated) || decoded["to_status"] != string(domain.StatusApproved) {
		t.Fatalf("unexpected payload %s", payload)
	}
	if _, ok := decoded["remarks"]; ok {
		t.Fatalf("expected empty remarks omitted, got %s", payload)
	}
}

func TestSubjectDefaults(t *testing.T) {
	s := Subjects{Transitions: "custom.transitions"}.withDefaults()
	if s.AnalysisRequested != "submissions.analysis.requested" || s.Transitions != "custom.transitions" {
		t.Fatalf("unexpected subjects %+v", s)
	}
}

func TestPublishedAtReadsHeader(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := nats.NewMsg("submissions.analysis.requested")
	msg.Header.Set(publishedAtHeader, at.Format(time.RFC3339Nano))

	got, ok := publishedAt(msg)
	if !ok || !got.Equal(at) {
		t.Fatalf("expected %v, got %v ok=%v", at, got, ok)
	}

	if _, ok := publishedAt(&nats.Msg{Subject: "x"}); ok {
		t.Fatalf("expected no timestamp without headers")
	}
}
