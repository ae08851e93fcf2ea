package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

const (
	submissionsTable = "submissions"
	transitionsTable = "submission_transitions"
)

var submissionColumns = []string{
	"id",
	"faculty_id",
	"course_id",
	"document_type_id",
	"semester",
	"academic_year",
	"section",
	"version",
	"is_current",
	"filename",
	"content_type",
	"size_bytes",
	"staging_object_id",
	"vault_object_id",
	"staged",
	"status",
	"issues",
	"analysis",
	"submitted_at",
	"approved_at",
	"rejected_at",
	"updated_at",
}

var transitionColumns = []string{
	"id",
	"submission_id",
	"from_status",
	"to_status",
	"actor",
	"remarks",
	"created_at",
}

type submissionRow struct {
	ID              string         `db:"id"`
	FacultyID       string         `db:"faculty_id"`
	CourseID        string         `db:"course_id"`
	DocumentTypeID  string         `db:"document_type_id"`
	Semester        string         `db:"semester"`
	AcademicYear    string         `db:"academic_year"`
	Section         string         `db:"section"`
	Version         int            `db:"version"`
	Current         bool           `db:"is_current"`
	Filename        string         `db:"filename"`
	ContentType     string         `db:"content_type"`
	SizeBytes       int64          `db:"size_bytes"`
	StagingObjectID sql.NullString `db:"staging_object_id"`
	VaultObjectID   sql.NullString `db:"vault_object_id"`
	Staged          bool           `db:"staged"`
	Status          string         `db:"status"`
	Issues          []byte         `db:"issues"`
	Analysis        []byte         `db:"analysis"`
	SubmittedAt     time.Time      `db:"submitted_at"`
	ApprovedAt      sql.NullTime   `db:"approved_at"`
	RejectedAt      sql.NullTime   `db:"rejected_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r submissionRow) toDomain() (domain.Submission, error) {
	sub := domain.Submission{
		ID: r.ID,
		Identity: domain.Identity{
			FacultyID:      r.FacultyID,
			CourseID:       r.CourseID,
			DocumentTypeID: r.DocumentTypeID,
			Semester:       r.Semester,
			AcademicYear:   r.AcademicYear,
		},
		Section:         r.Section,
		Version:         r.Version,
		Current:         r.Current,
		Filename:        r.Filename,
		ContentType:     r.ContentType,
		SizeBytes:       r.SizeBytes,
		StagingObjectID: r.StagingObjectID.String,
		VaultObjectID:   r.VaultObjectID.String,
		Staged:          r.Staged,
		Status:          domain.Status(r.Status),
		Issues:          []string{},
		SubmittedAt:     r.SubmittedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if len(r.Issues) > 0 {
		if err := json.Unmarshal(r.Issues, &sub.Issues); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal issues: %w", err)
		}
	}
	if len(r.Analysis) > 0 {
		var analysis domain.AnalysisResult
		if err := json.Unmarshal(r.Analysis, &analysis); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal analysis: %w", err)
		}
		sub.Analysis = &analysis
	}
	if r.ApprovedAt.Valid {
		t := r.ApprovedAt.Time
		sub.ApprovedAt = &t
	}
	if r.RejectedAt.Valid {
		t := r.RejectedAt.Time
		sub.RejectedAt = &t
	}
	return sub, nil
}

func rowsToDomain(rows []submissionRow) ([]domain.Submission, error) {
	out := make([]domain.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func identityEq(identity domain.Identity) sq.Eq {
	return sq.Eq{
		"faculty_id":       identity.FacultyID,
		"course_id":        identity.CourseID,
		"document_type_id": identity.DocumentTypeID,
		"semester":         identity.Semester,
		"academic_year":    identity.AcademicYear,
	}
}

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

var _ ports.SubmissionRepository = (*SubmissionRepository)(nil)

// RecordVersion serializes writers per identity with a transaction-scoped advisory lock.
// The row is born with its settled status; there is no committed SUBMITTED-only state.
func (r *SubmissionRepository) RecordVersion(ctx context.Context, identity domain.Identity, build ports.VersionBuilder) (*domain.Submission, domain.Transition, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Transition{}, fmt.Errorf("begin version tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, identity.Key()); err != nil {
		return nil, domain.Transition{}, fmt.Errorf("acquire identity lock: %w", err)
	}

	query, args, err := psql().
		Select(submissionColumns...).
		From(submissionsTable).
		Where(identityEq(identity)).
		Where("is_current").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, domain.Transition{}, fmt.Errorf("build current version query: %w", err)
	}

	var current *domain.Submission
	var row submissionRow
	switch err := sqlscan.Get(ctx, tx, &row, query, args...); {
	case err == nil:
		sub, err := row.toDomain()
		if err != nil {
			return nil, domain.Transition{}, err
		}
		current = &sub
	case sqlscan.NotFound(err):
	default:
		return nil, domain.Transition{}, fmt.Errorf("load current version: %w", err)
	}

	built, err := build(current)
	if err != nil {
		return nil, domain.Transition{}, err
	}
	next := built.Submission

	if current != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE submissions SET is_current = FALSE, updated_at = $2 WHERE id = $1`,
			current.ID, next.SubmittedAt,
		); err != nil {
			return nil, domain.Transition{}, fmt.Errorf("clear current marker: %w", err)
		}
	}

	issuesJSON, err := json.Marshal(next.Issues)
	if err != nil {
		return nil, domain.Transition{}, fmt.Errorf("marshal issues: %w", err)
	}
	insert, insertArgs, err := psql().
		Insert(submissionsTable).
		Columns(submissionColumns...).
		Values(
			next.ID,
			next.Identity.FacultyID,
			next.Identity.CourseID,
			next.Identity.DocumentTypeID,
			next.Identity.Semester,
			next.Identity.AcademicYear,
			next.Section,
			next.Version,
			next.Current,
			next.Filename,
			next.ContentType,
			next.SizeBytes,
			nullString(next.StagingObjectID),
			nullString(next.VaultObjectID),
			next.Staged,
			string(next.Status),
			issuesJSON,
			nil,
			next.SubmittedAt,
			nullTime(next.ApprovedAt),
			nullTime(next.RejectedAt),
			next.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return nil, domain.Transition{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
		return nil, domain.Transition{}, fmt.Errorf("insert submission: %w", err)
	}

	settled := built.Settled
	if settled.ID, err = insertTransition(ctx, tx, settled); err != nil {
		return nil, domain.Transition{}, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Transition{}, fmt.Errorf("commit version tx: %w", err)
	}
	return next, settled, nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	query, args, err := psql().
		Select(submissionColumns...).
		From(submissionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row submissionRow
	if err := sqlscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	sub, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubmissionRepository) ListVersions(ctx context.Context, identity domain.Identity) ([]domain.Submission, error) {
	query, args, err := psql().
		Select(submissionColumns...).
		From(submissionsTable).
		Where(identityEq(identity)).
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []submissionRow
	if err := sqlscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return rowsToDomain(rows)
}

// ListPending returns current versions awaiting a reviewer decision, oldest first.
func (r *SubmissionRepository) ListPending(ctx context.Context, scope domain.ScopeFilter) ([]domain.Submission, error) {
	builder := psql().
		Select(submissionColumns...).
		From(submissionsTable).
		Where("is_current").
		Where(sq.Eq{"status": []string{string(domain.StatusValidated), string(domain.StatusFailed)}})

	filters := map[string]string{
		"faculty_id":       scope.FacultyID,
		"course_id":        scope.CourseID,
		"document_type_id": scope.DocumentTypeID,
		"semester":         scope.Semester,
		"academic_year":    scope.AcademicYear,
	}
	eq := sq.Eq{}
	for column, value := range filters {
		if value != "" {
			eq[column] = value
		}
	}
	if len(eq) > 0 {
		builder = builder.Where(eq)
	}

	query, args, err := builder.OrderBy("submitted_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []submissionRow
	if err := sqlscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return rowsToDomain(rows)
}

// ApplyTransition writes the new state only if the stored status still equals tr.From,
// and appends the transition record in the same transaction.
func (r *SubmissionRepository) ApplyTransition(ctx context.Context, sub *domain.Submission, tr domain.Transition) (domain.Transition, error) {
	issuesJSON, err := json.Marshal(sub.Issues)
	if err != nil {
		return domain.Transition{}, fmt.Errorf("marshal issues: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transition{}, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE submissions
SET status = $2, issues = $3, staging_object_id = $4, vault_object_id = $5, staged = $6,
	approved_at = $7, rejected_at = $8, updated_at = $9
WHERE id = $1 AND status = $10
`,
		sub.ID, string(tr.To), issuesJSON, nullString(sub.StagingObjectID), nullString(sub.VaultObjectID), sub.Staged,
		nullTime(sub.ApprovedAt), nullTime(sub.RejectedAt), sub.UpdatedAt, string(tr.From),
	)
	if err != nil {
		return domain.Transition{}, fmt.Errorf("update submission status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Transition{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Transition{}, r.explainMiss(ctx, tx, sub.ID, tr.From)
	}

	if tr.ID, err = insertTransition(ctx, tx, tr); err != nil {
		return domain.Transition{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Transition{}, fmt.Errorf("commit transition tx: %w", err)
	}
	return tr, nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, tr domain.Transition) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
INSERT INTO submission_transitions (submission_id, from_status, to_status, actor, remarks, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, tr.SubmissionID, string(tr.From), string(tr.To), tr.Actor, tr.Remarks, tr.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transition: %w", err)
	}
	return id, nil
}

func (r *SubmissionRepository) explainMiss(ctx context.Context, tx *sql.Tx, id string, expected domain.Status) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrSubmissionNotFound, "apply transition", fmt.Errorf("id %s", id))
	}
	if err != nil {
		return fmt.Errorf("reload status: %w", err)
	}
	return domain.WrapError(domain.ErrStaleState, "apply transition", fmt.Errorf("expected %s, found %s", expected, status))
}

func (r *SubmissionRepository) SavePromotion(ctx context.Context, id, vaultObjectID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET vault_object_id = $2, staging_object_id = NULL, staged = FALSE, updated_at = $3
WHERE id = $1
`, id, vaultObjectID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save promotion: %w", err)
	}
	return requireAffected(res, domain.ErrSubmissionNotFound, "save promotion", id)
}

func (r *SubmissionRepository) SaveAnalysis(ctx context.Context, id string, result domain.AnalysisResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET analysis = $2, updated_at = $3
WHERE id = $1
`, id, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return requireAffected(res, domain.ErrSubmissionNotFound, "save analysis", id)
}

func (r *SubmissionRepository) ListTransitions(ctx context.Context, submissionID string) ([]domain.Transition, error) {
	query, args, err := psql().
		Select(transitionColumns...).
		From(transitionsTable).
		Where(sq.Eq{"submission_id": submissionID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	transitions := []domain.Transition{}
	if err := sqlscan.Select(ctx, r.db, &transitions, query, args...); err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return transitions, nil
}

// ListRecentTransitions feeds "recently approved" style views; an empty status means any.
func (r *SubmissionRepository) ListRecentTransitions(ctx context.Context, to domain.Status, limit int) ([]domain.Transition, error) {
	builder := psql().
		Select(transitionColumns...).
		From(transitionsTable)
	if to != "" {
		builder = builder.Where(sq.Eq{"to_status": string(to)})
	}
	query, args, err := builder.
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	transitions := []domain.Transition{}
	if err := sqlscan.Select(ctx, r.db, &transitions, query, args...); err != nil {
		return nil, fmt.Errorf("list recent transitions: %w", err)
	}
	return transitions, nil
}

func requireAffected(res sql.Result, kind error, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(kind, op, fmt.Errorf("id %s", id))
	}
	return nil
}
