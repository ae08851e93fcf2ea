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

const (
	promotionOutcomeMoved     = "moved"
	promotionOutcomeRecovered = "recovered"
	promotionOutcomeNoop      = "already_promoted"
	promotionOutcomeFailed    = "failed"
)

type StagingConfig struct {
	VaultRoot        string
	PromotionTimeout time.Duration
	StorageTimeout   time.Duration
}

// PromotionResult is the success variant of a promotion; failures come back as ErrPromotionFailed.
type PromotionResult struct {
	VaultObjectID   string
	AlreadyPromoted bool
	// Recovered means an earlier attempt had already moved the object; only the pointer was written now.
	Recovered bool
}

type DiscardOutcome struct {
	// Deleted means the staged object is gone.
	Deleted bool
	// VaultDeleted means a vault copy of the rejected version was removed.
	VaultDeleted bool
	Warning      string
}

// StagingCoordinator moves files out of the staging area: into the vault on approval, or away on rejection.
type StagingCoordinator struct {
	storage ports.ObjectStorage
	repo    ports.SubmissionRepository
	rules   ports.RuleStore
	cfg     StagingConfig
	logger  *zap.Logger
	metrics ports.PipelineMetrics
	now     func() time.Time
}

func NewStagingCoordinator(
	storage ports.ObjectStorage,
	repo ports.SubmissionRepository,
	rules ports.RuleStore,
	cfg StagingConfig,
	logger *zap.Logger,
	metrics ports.PipelineMetrics,
) *StagingCoordinator {
	if cfg.PromotionTimeout <= 0 {
		cfg.PromotionTimeout = 30 * time.Second
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &StagingCoordinator{
		storage: storage,
		repo:    repo,
		rules:   rules,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "staging")),
		metrics: metrics,
		now:     time.Now,
	}
}

// Promote moves the staged object into its vault location and records the new pointer.
// On success sub is updated in place; on failure sub is untouched.
func (c *StagingCoordinator) Promote(ctx context.Context, sub *domain.Submission) (PromotionResult, error) {
	start := c.now()
	result, err := c.promote(ctx, sub)

	outcome := promotionOutcomeMoved
	switch {
	case err != nil:
		outcome = promotionOutcomeFailed
	case result.AlreadyPromoted:
		outcome = promotionOutcomeNoop
	case result.Recovered:
		outcome = promotionOutcomeRecovered
	}
	c.metrics.ObservePromotion(outcome, c.now().Sub(start))

	if err != nil {
		c.logger.Error("promotion_failed",
			zap.String("submission_id", sub.ID),
			zap.String("staging_object_id", sub.StagingObjectID),
			zap.Error(err),
		)
		return PromotionResult{}, err
	}
	c.logger.Info("promotion_completed",
		zap.String("submission_id", sub.ID),
		zap.String("vault_object_id", result.VaultObjectID),
		zap.String("outcome", outcome),
	)
	return result, nil
}

func (c *StagingCoordinator) promote(ctx context.Context, sub *domain.Submission) (PromotionResult, error) {
	if !sub.Staged && sub.VaultObjectID != "" {
		return PromotionResult{VaultObjectID: sub.VaultObjectID, AlreadyPromoted: true}, nil
	}
	if sub.StagingObjectID == "" {
		return PromotionResult{}, promotionFailed(errors.New("submission has no staged object"))
	}

	loc, err := c.resolve(ctx, sub)
	if err != nil {
		return PromotionResult{}, promotionFailed(err)
	}

	moveCtx, cancel := context.WithTimeout(ctx, c.cfg.PromotionTimeout)
	defer cancel()

	if _, err := c.storage.EnsureContainer(moveCtx, loc.Container); err != nil {
		return PromotionResult{}, promotionFailed(fmt.Errorf("ensure container %s: %w", loc.Container, err))
	}

	vaultID, recovered, err := c.moveOnce(moveCtx, sub.StagingObjectID, loc.ObjectID)
	if err != nil {
		return PromotionResult{}, promotionFailed(err)
	}

	if err := c.repo.SavePromotion(ctx, sub.ID, vaultID); err != nil {
		// The object is in the vault but the pointer is not; a retry recovers via moveOnce.
		return PromotionResult{}, promotionFailed(fmt.Errorf("record vault pointer: %w", err))
	}

	sub.VaultObjectID = vaultID
	sub.StagingObjectID = ""
	sub.Staged = false
	return PromotionResult{VaultObjectID: vaultID, Recovered: recovered}, nil
}

func (c *StagingCoordinator) resolve(ctx context.Context, sub *domain.Submission) (domain.VaultLocation, error) {
	folder := ""
	if c.rules != nil {
		docType, err := c.rules.GetDocumentType(ctx, sub.Identity.DocumentTypeID)
		switch {
		case err == nil:
			folder = docType.Folder
		case domain.IsKind(err, domain.ErrDocumentTypeNotFound):
		default:
			return domain.VaultLocation{}, fmt.Errorf("load document type: %w", err)
		}
	}
	return domain.ResolveVaultLocation(c.cfg.VaultRoot, sub, folder)
}

// moveOnce checks where the object actually is before moving, so a retry after an
// ambiguous failure never re-issues a move that already landed.
func (c *StagingCoordinator) moveOnce(ctx context.Context, stagingID, targetID string) (string, bool, error) {
	inStaging, err := c.storage.Exists(ctx, stagingID)
	if err != nil {
		return "", false, fmt.Errorf("check staged object: %w", err)
	}
	if !inStaging {
		inVault, err := c.storage.Exists(ctx, targetID)
		if err != nil {
			return "", false, fmt.Errorf("check vault object: %w", err)
		}
		if inVault {
			return targetID, true, nil
		}
		return "", false, fmt.Errorf("staged object %s not found", stagingID)
	}

	vaultID, err := c.storage.Move(ctx, stagingID, targetID)
	if err != nil {
		return "", false, fmt.Errorf("move %s -> %s: %w", stagingID, targetID, err)
	}
	return vaultID, false, nil
}

// Discard removes every stored copy of a rejected version: the staged object, plus a vault
// object left by an approval whose status was never recorded or by a move that copied but
// could not delete its source. Failures never propagate; they come back as a warning.
func (c *StagingCoordinator) Discard(ctx context.Context, sub *domain.Submission) DiscardOutcome {
	deleteCtx, cancel := context.WithTimeout(ctx, c.cfg.StorageTimeout)
	defer cancel()

	var outcome DiscardOutcome
	var warnings []string

	if sub.Staged && sub.StagingObjectID != "" {
		if err := c.storage.Delete(deleteCtx, sub.StagingObjectID); err != nil {
			warnings = append(warnings, c.cleanupDeferred(sub, sub.StagingObjectID, err))
		} else {
			outcome.Deleted = true
		}
	}

	vaultID, err := c.leftoverVaultObject(deleteCtx, sub)
	switch {
	case err != nil:
		warnings = append(warnings, c.cleanupDeferred(sub, vaultID, err))
	case vaultID != "":
		if err := c.storage.Delete(deleteCtx, vaultID); err != nil {
			warnings = append(warnings, c.cleanupDeferred(sub, vaultID, err))
			break
		}
		outcome.VaultDeleted = true
		c.logger.Warn("rejected_vault_object_removed",
			zap.String("submission_id", sub.ID),
			zap.String("vault_object_id", vaultID),
		)
	}

	outcome.Warning = strings.Join(warnings, "; ")
	return outcome
}

// leftoverVaultObject returns the vault key holding a copy of sub, or "" when there is none.
// A recorded pointer wins; otherwise the resolved key is checked for an unrecorded copy.
func (c *StagingCoordinator) leftoverVaultObject(ctx context.Context, sub *domain.Submission) (string, error) {
	if sub.VaultObjectID != "" {
		return sub.VaultObjectID, nil
	}
	loc, err := c.resolve(ctx, sub)
	if err != nil {
		// Promotion resolves the same way, so nothing can have been moved.
		return "", nil
	}
	found, err := c.storage.Exists(ctx, loc.ObjectID)
	if err != nil {
		return loc.ObjectID, fmt.Errorf("check vault object: %w", err)
	}
	if !found {
		return "", nil
	}
	return loc.ObjectID, nil
}

func (c *StagingCoordinator) cleanupDeferred(sub *domain.Submission, objectID string, err error) string {
	c.metrics.ObserveDiscardWarning()
	c.logger.Warn("object_cleanup_deferred",
		zap.String("submission_id", sub.ID),
		zap.String("object_id", objectID),
		zap.Error(err),
	)
	return fmt.Sprintf("storage cleanup deferred for %s: %v", objectID, err)
}

func promotionFailed(err error) error {
	return domain.WrapError(domain.ErrPromotionFailed, "promote", err)
}
