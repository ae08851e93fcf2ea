package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

// RuleAdminUseCase is the administrator surface over document types and their rule sets.
type RuleAdminUseCase struct {
	store ports.RuleStore
	now   func() time.Time
}

func NewRuleAdminUseCase(store ports.RuleStore) *RuleAdminUseCase {
	return &RuleAdminUseCase{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (uc *RuleAdminUseCase) ListDocumentTypes(ctx context.Context, activeOnly bool) ([]domain.DocumentType, error) {
	return uc.store.ListDocumentTypes(ctx, activeOnly)
}

func (uc *RuleAdminUseCase) SaveDocumentType(ctx context.Context, docType domain.DocumentType) error {
	docType.ID = strings.TrimSpace(docType.ID)
	docType.Name = strings.TrimSpace(docType.Name)
	docType.Folder = strings.TrimSpace(docType.Folder)
	if err := docType.Validate(); err != nil {
		return err
	}

	now := uc.now()
	existing, err := uc.store.GetDocumentType(ctx, docType.ID)
	switch {
	case err == nil:
		docType.CreatedAt = existing.CreatedAt
	case domain.IsKind(err, domain.ErrDocumentTypeNotFound):
		docType.CreatedAt = now
	default:
		return fmt.Errorf("load document type: %w", err)
	}
	docType.UpdatedAt = now

	if err := uc.store.SaveDocumentType(ctx, docType); err != nil {
		return fmt.Errorf("save document type: %w", err)
	}
	return nil
}

func (uc *RuleAdminUseCase) GetRuleSet(ctx context.Context, documentTypeID string) (*domain.RuleSet, error) {
	return uc.store.GetRuleSet(ctx, documentTypeID)
}

// SaveRuleSet parses the comma-separated admin form once and stores the structured result.
func (uc *RuleAdminUseCase) SaveRuleSet(ctx context.Context, documentTypeID string, in domain.RuleSetInput) (*domain.RuleSet, error) {
	if _, err := uc.store.GetDocumentType(ctx, documentTypeID); err != nil {
		return nil, err
	}

	rules, err := domain.ParseRuleSet(documentTypeID, in)
	if err != nil {
		return nil, err
	}
	rules.UpdatedAt = uc.now()

	if err := uc.store.SaveRuleSet(ctx, rules); err != nil {
		return nil, fmt.Errorf("save rule set: %w", err)
	}
	return &rules, nil
}
