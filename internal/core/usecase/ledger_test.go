package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

func fileMeta(stagingID string) domain.FileMeta {
	return domain.FileMeta{Filename: "syllabus.pdf", SizeBytes: 100, StagingObjectID: stagingID}
}

func settlePassed(sub *domain.Submission) (domain.Transition, error) {
	tr := domain.Transition{SubmissionID: sub.ID, From: sub.Status, To: domain.StatusValidated, Actor: SystemActor}
	sub.Status = domain.StatusValidated
	return tr, nil
}

func TestRecordVersionStartsAtOne(t *testing.T) {
	repo := newMemRepo()
	ledger := NewVersionLedger(repo)

	sub, _, err := ledger.RecordVersion(context.Background(), testIdentity(), fileMeta("staging/a"), settlePassed)
	if err != nil {
		t.Fatalf("RecordVersion() error = %v", err)
	}
	if sub.Version != 1 || !sub.Current || !sub.Staged || sub.Status != domain.StatusValidated {
		t.Fatalf("unexpected first version %+v", sub)
	}
	trs, _ := repo.ListTransitions(context.Background(), sub.ID)
	if len(trs) != 1 || trs[0].From != domain.StatusSubmitted || trs[0].To != domain.StatusValidated {
		t.Fatalf("expected the settled transition stored with the row, got %+v", trs)
	}
}

func TestRecordVersionSettleErrorStoresNothing(t *testing.T) {
	repo := newMemRepo()
	ledger := NewVersionLedger(repo)
	ctx := context.Background()

	_, _, err := ledger.RecordVersion(ctx, testIdentity(), fileMeta("staging/e"), func(*domain.Submission) (domain.Transition, error) {
		return domain.Transition{}, domain.WrapError(domain.ErrInvalidTransition, "settle", errors.New("bad verdict"))
	})
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	versions, _ := ledger.ListVersions(ctx, testIdentity())
	if len(versions) != 0 {
		t.Fatalf("expected empty slot, got %+v", versions)
	}
	if _, _, err := ledger.RecordVersion(ctx, testIdentity(), fileMeta("staging/f"), settlePassed); err != nil {
		t.Fatalf("expected the slot to stay open, got %v", err)
	}
}

func TestRecordVersionSupersedesTerminalVersions(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusApproved, domain.StatusRejected, domain.StatusRevisionRequested} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMemRepo()
			repo.put(domain.Submission{ID: "old", Identity: testIdentity(), Version: 1, Current: true, Status: status})
			ledger := NewVersionLedger(repo)

			sub, _, err := ledger.RecordVersion(context.Background(), testIdentity(), fileMeta("staging/b"), settlePassed)
			if err != nil {
				t.Fatalf("RecordVersion() error = %v", err)
			}
			if sub.Version != 2 {
				t.Fatalf("expected version 2, got %d", sub.Version)
			}
			old, _ := repo.GetByID(context.Background(), "old")
			if old.Current {
				t.Fatalf("expected previous version to lose current marker")
			}
		})
	}
}

func TestRecordVersionConflictsWhileInReview(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusSubmitted, domain.StatusValidated, domain.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMemRepo()
			repo.put(domain.Submission{ID: "old", Identity: testIdentity(), Version: 3, Current: true, Status: status})
			ledger := NewVersionLedger(repo)

			_, _, err := ledger.RecordVersion(context.Background(), testIdentity(), fileMeta("staging/c"), settlePassed)
			if !domain.IsKind(err, domain.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			old, _ := repo.GetByID(context.Background(), "old")
			if !old.Current {
				t.Fatalf("expected in-review version to stay current")
			}
		})
	}
}

func TestRecordVersionChainHasNoGaps(t *testing.T) {
	repo := newMemRepo()
	ledger := NewVersionLedger(repo)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		sub, _, err := ledger.RecordVersion(ctx, testIdentity(), fileMeta("staging/x"), settlePassed)
		if err != nil {
			t.Fatalf("RecordVersion(#%d) error = %v", i, err)
		}
		if sub.Version != i {
			t.Fatalf("expected version %d, got %d", i, sub.Version)
		}
		stored, _ := repo.GetByID(ctx, sub.ID)
		stored.Status = domain.StatusRejected
		repo.put(*stored)
	}

	versions, err := ledger.ListVersions(ctx, testIdentity())
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	current := 0
	for i, v := range versions {
		if v.Version != i+1 {
			t.Fatalf("expected version %d at position %d, got %d", i+1, i, v.Version)
		}
		if v.Current {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("expected exactly one current version, got %d", current)
	}
}

func TestRecordVersionRejectsIncompleteIdentity(t *testing.T) {
	ledger := NewVersionLedger(newMemRepo())
	identity := testIdentity()
	identity.Semester = ""

	_, _, err := ledger.RecordVersion(context.Background(), identity, fileMeta("staging/d"), settlePassed)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
