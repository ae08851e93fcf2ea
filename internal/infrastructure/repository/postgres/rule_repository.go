package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

const (
	documentTypesTable = "document_types"
	ruleSetsTable      = "rule_sets"
)

var documentTypeColumns = []string{
	"id",
	"name",
	"folder",
	"required_by_default",
	"active",
	"created_at",
	"updated_at",
}

var ruleSetColumns = []string{
	"document_type_id",
	"required_keywords",
	"forbidden_keywords",
	"allowed_extensions",
	"max_file_size_bytes",
	"min_word_count",
	"updated_at",
}

type ruleSetRow struct {
	DocumentTypeID    string    `db:"document_type_id"`
	RequiredKeywords  []byte    `db:"required_keywords"`
	ForbiddenKeywords []byte    `db:"forbidden_keywords"`
	AllowedExtensions []byte    `db:"allowed_extensions"`
	MaxFileSizeBytes  int64     `db:"max_file_size_bytes"`
	MinWordCount      int       `db:"min_word_count"`
	UpdatedAt         time.Time `db:"updated_at"`
}

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

var _ ports.RuleStore = (*RuleRepository)(nil)

func (r *RuleRepository) GetDocumentType(ctx context.Context, id string) (*domain.DocumentType, error) {
	query, args, err := psql().
		Select(documentTypeColumns...).
		From(documentTypesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var docType domain.DocumentType
	if err := sqlscan.Get(ctx, r.db, &docType, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, domain.WrapError(domain.ErrDocumentTypeNotFound, "get document type", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("get document type: %w", err)
	}
	return &docType, nil
}

func (r *RuleRepository) ListDocumentTypes(ctx context.Context, activeOnly bool) ([]domain.DocumentType, error) {
	builder := psql().
		Select(documentTypeColumns...).
		From(documentTypesTable)
	if activeOnly {
		builder = builder.Where(sq.Eq{"active": true})
	}
	query, args, err := builder.OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	docTypes := []domain.DocumentType{}
	if err := sqlscan.Select(ctx, r.db, &docTypes, query, args...); err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	return docTypes, nil
}

// SaveDocumentType upserts; created_at is kept from the first insert.
func (r *RuleRepository) SaveDocumentType(ctx context.Context, docType domain.DocumentType) error {
	query, args, err := psql().
		Insert(documentTypesTable).
		Columns(documentTypeColumns...).
		Values(
			docType.ID,
			docType.Name,
			docType.Folder,
			docType.RequiredByDefault,
			docType.Active,
			docType.CreatedAt,
			docType.UpdatedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	folder = EXCLUDED.folder,
	required_by_default = EXCLUDED.required_by_default,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save document type: %w", err)
	}
	return nil
}

func (r *RuleRepository) GetRuleSet(ctx context.Context, documentTypeID string) (*domain.RuleSet, error) {
	query, args, err := psql().
		Select(ruleSetColumns...).
		From(ruleSetsTable).
		Where(sq.Eq{"document_type_id": documentTypeID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row ruleSetRow
	if err := sqlscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, domain.WrapError(domain.ErrRuleSetNotFound, "get rule set", fmt.Errorf("document type %s", documentTypeID))
		}
		return nil, fmt.Errorf("get rule set: %w", err)
	}

	rules := domain.RuleSet{
		DocumentTypeID:   row.DocumentTypeID,
		MaxFileSizeBytes: row.MaxFileSizeBytes,
		MinWordCount:     row.MinWordCount,
		UpdatedAt:        row.UpdatedAt,
	}
	lists := []struct {
		raw  []byte
		dest *[]string
		name string
	}{
		{row.RequiredKeywords, &rules.RequiredKeywords, "required keywords"},
		{row.ForbiddenKeywords, &rules.ForbiddenKeywords, "forbidden keywords"},
		{row.AllowedExtensions, &rules.AllowedExtensions, "allowed extensions"},
	}
	for _, list := range lists {
		*list.dest = []string{}
		if len(list.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(list.raw, list.dest); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", list.name, err)
		}
	}

	// Rows edited by hand in the database must still satisfy the rule-set invariants.
	normalized, err := domain.NewRuleSet(rules)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "get rule set", err)
	}
	return &normalized, nil
}

func (r *RuleRepository) SaveRuleSet(ctx context.Context, rules domain.RuleSet) error {
	required, err := json.Marshal(rules.RequiredKeywords)
	if err != nil {
		return fmt.Errorf("marshal required keywords: %w", err)
	}
	forbidden, err := json.Marshal(rules.ForbiddenKeywords)
	if err != nil {
		return fmt.Errorf("marshal forbidden keywords: %w", err)
	}
	extensions, err := json.Marshal(rules.AllowedExtensions)
	if err != nil {
		return fmt.Errorf("marshal allowed extensions: %w", err)
	}

	query, args, err := psql().
		Insert(ruleSetsTable).
		Columns(ruleSetColumns...).
		Values(
			rules.DocumentTypeID,
			required,
			forbidden,
			extensions,
			rules.MaxFileSizeBytes,
			rules.MinWordCount,
			rules.UpdatedAt,
		).
		Suffix(`ON CONFLICT (document_type_id) DO UPDATE SET
	required_keywords = EXCLUDED.required_keywords,
	forbidden_keywords = EXCLUDED.forbidden_keywords,
	allowed_extensions = EXCLUDED.allowed_extensions,
	max_file_size_bytes = EXCLUDED.max_file_size_bytes,
	min_word_count = EXCLUDED.min_word_count,
	updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save rule set: %w", err)
	}
	return nil
}
