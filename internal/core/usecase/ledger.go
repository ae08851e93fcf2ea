package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

// VersionLedger assigns version numbers per identity tuple and keeps exactly one current row.
type VersionLedger struct {
	repo  ports.SubmissionRepository
	now   func() time.Time
	newID func() string
}

func NewVersionLedger(repo ports.SubmissionRepository) *VersionLedger {
	return &VersionLedger{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// settleFunc moves a freshly built SUBMITTED version to its verdict status and returns the
// transition to store with it.
type settleFunc func(sub *domain.Submission) (domain.Transition, error)

// RecordVersion stores the next version of identity already settled by settle, together with
// its transition record, so a failure leaves nothing behind.
func (l *VersionLedger) RecordVersion(
	ctx context.Context,
	identity domain.Identity,
	file domain.FileMeta,
	settle settleFunc,
) (*domain.Submission, domain.Transition, error) {
	if err := identity.Validate(); err != nil {
		return nil, domain.Transition{}, err
	}
	if file.StagingObjectID == "" {
		return nil, domain.Transition{}, domain.WrapError(domain.ErrInvalidInput, "record version", errors.New("staging object id is required"))
	}
	if settle == nil {
		return nil, domain.Transition{}, errors.New("record version: settle func is required")
	}

	sub, tr, err := l.repo.RecordVersion(ctx, identity, func(current *domain.Submission) (ports.NewVersion, error) {
		next, err := l.next(identity, file, current)
		if err != nil {
			return ports.NewVersion{}, err
		}
		settled, err := settle(next)
		if err != nil {
			return ports.NewVersion{}, err
		}
		return ports.NewVersion{Submission: next, Settled: settled}, nil
	})
	if err != nil {
		return nil, domain.Transition{}, fmt.Errorf("record version: %w", err)
	}
	return sub, tr, nil
}

func (l *VersionLedger) next(identity domain.Identity, file domain.FileMeta, current *domain.Submission) (*domain.Submission, error) {
	version := 1
	if current != nil {
		if current.Status.BlocksResubmission() {
			return nil, domain.WrapError(
				domain.ErrConflict,
				"record version",
				fmt.Errorf("version %d of this slot is %s; wait for the review to conclude", current.Version, current.Status),
			)
		}
		version = current.Version + 1
	}

	now := l.now()
	return &domain.Submission{
		ID:              l.newID(),
		Identity:        identity,
		Section:         file.Section,
		Version:         version,
		Current:         true,
		Filename:        file.Filename,
		ContentType:     file.ContentType,
		SizeBytes:       file.SizeBytes,
		StagingObjectID: file.StagingObjectID,
		Staged:          true,
		Status:          domain.StatusSubmitted,
		Issues:          []string{},
		SubmittedAt:     now,
		UpdatedAt:       now,
	}, nil
}

func (l *VersionLedger) ListVersions(ctx context.Context, identity domain.Identity) ([]domain.Submission, error) {
	versions, err := l.repo.ListVersions(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}
