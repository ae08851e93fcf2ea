package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

const SystemActor = "system"

// stager is the part of StagingCoordinator the state machine depends on.
type stager interface {
	Promote(ctx context.Context, sub *domain.Submission) (PromotionResult, error)
	Discard(ctx context.Context, sub *domain.Submission) DiscardOutcome
}

// LifecycleMachine is the single writer of submission status.
type LifecycleMachine struct {
	repo    ports.SubmissionRepository
	staging stager
	events  ports.EventBus
	logger  *zap.Logger
	metrics ports.PipelineMetrics
	now     func() time.Time
}

func NewLifecycleMachine(
	repo ports.SubmissionRepository,
	staging stager,
	events ports.EventBus,
	logger *zap.Logger,
	metrics ports.PipelineMetrics,
) *LifecycleMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &LifecycleMachine{
		repo:    repo,
		staging: staging,
		events:  events,
		logger:  logger.With(zap.String("component", "lifecycle")),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Settle applies the automatic SUBMITTED -> VALIDATED|FAILED exit to a version that has not
// been stored yet and returns the transition to store with it. Nothing is persisted here.
func (m *LifecycleMachine) Settle(sub *domain.Submission, verdict domain.Verdict) (domain.Transition, error) {
	to := domain.StatusForVerdict(verdict)
	if err := domain.CheckTransition(sub.Status, to); err != nil {
		return domain.Transition{}, err
	}

	issues := verdict.Issues
	if issues == nil {
		issues = []string{}
	}
	remarks := "automated validation passed"
	if !verdict.Passed {
		remarks = fmt.Sprintf("automated validation found %d issue(s)", len(issues))
	}

	now := m.now()
	tr := domain.Transition{
		SubmissionID: sub.ID,
		From:         sub.Status,
		To:           to,
		Actor:        SystemActor,
		Remarks:      remarks,
		CreatedAt:    now,
	}
	sub.Status = to
	sub.Issues = issues
	sub.UpdatedAt = now
	return tr, nil
}

// Recorded reports a settled version once its row and transition are committed.
func (m *LifecycleMachine) Recorded(ctx context.Context, tr domain.Transition) {
	m.announce(ctx, tr)
	m.metrics.ObserveSubmission(tr.To)
}

// Decide applies a reviewer action. Approval is persisted only after a successful promotion;
// rejection is persisted even when storage cleanup fails.
func (m *LifecycleMachine) Decide(
	ctx context.Context,
	sub *domain.Submission,
	action domain.ReviewAction,
	actor, remarks string,
) (*domain.ReviewOutcome, error) {
	to, err := action.Target()
	if err != nil {
		return nil, err
	}
	if sub.Status.Decided() {
		return nil, domain.WrapError(domain.ErrStaleState, "review "+string(action), fmt.Errorf("submission is already %s", sub.Status))
	}
	if err := domain.CheckTransition(sub.Status, to); err != nil {
		return nil, err
	}
	if to == domain.StatusRevisionRequested && strings.TrimSpace(remarks) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "request revision", errors.New("remarks are required"))
	}

	now := m.now()
	var warnings []string

	switch to {
	case domain.StatusApproved:
		// Promote updates sub's storage pointers in place on success.
		if _, err := m.staging.Promote(ctx, sub); err != nil {
			return nil, err
		}
	case domain.StatusRejected:
		outcome := m.staging.Discard(ctx, sub)
		if outcome.Deleted {
			sub.Staged = false
			sub.StagingObjectID = ""
		}
		if outcome.VaultDeleted {
			sub.VaultObjectID = ""
		}
		if outcome.Warning != "" {
			warnings = append(warnings, outcome.Warning)
		}
	}

	next := *sub
	switch to {
	case domain.StatusApproved:
		next.ApprovedAt = &now
	case domain.StatusRejected:
		next.RejectedAt = &now
	}

	tr, err := m.apply(ctx, sub, next, to, actor, remarks)
	if err != nil {
		if to == domain.StatusApproved {
			m.logger.Error("approval_not_recorded_after_promotion",
				zap.String("submission_id", sub.ID),
				zap.String("vault_object_id", sub.VaultObjectID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	return &domain.ReviewOutcome{
		Submission: sub,
		Transition: tr,
		Warnings:   warnings,
	}, nil
}

func (m *LifecycleMachine) apply(
	ctx context.Context,
	sub *domain.Submission,
	next domain.Submission,
	to domain.Status,
	actor, remarks string,
) (domain.Transition, error) {
	now := m.now()
	next.Status = to
	next.UpdatedAt = now

	tr := domain.Transition{
		SubmissionID: sub.ID,
		From:         sub.Status,
		To:           to,
		Actor:        actor,
		Remarks:      remarks,
		CreatedAt:    now,
	}
	saved, err := m.repo.ApplyTransition(ctx, &next, tr)
	if err != nil {
		return domain.Transition{}, fmt.Errorf("persist %s -> %s: %w", tr.From, tr.To, err)
	}
	*sub = next

	m.announce(ctx, saved)
	return saved, nil
}

func (m *LifecycleMachine) announce(ctx context.Context, tr domain.Transition) {
	m.logger.Info("submission_transition",
		zap.String("submission_id", tr.SubmissionID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("actor", tr.Actor),
	)
	m.publish(ctx, tr)
}

func (m *LifecycleMachine) publish(ctx context.Context, tr domain.Transition) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishTransition(ctx, tr); err != nil {
		m.logger.Warn("transition_event_publish_failed",
			zap.String("submission_id", tr.SubmissionID),
			zap.Error(err),
		)
	}
}
