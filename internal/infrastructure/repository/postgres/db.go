package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockID = int64(2026101601)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/cli startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_types (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	folder TEXT NOT NULL DEFAULT '',
	required_by_default BOOLEAN NOT NULL DEFAULT FALSE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rule_sets (
	document_type_id TEXT PRIMARY KEY REFERENCES document_types(id),
	required_keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	forbidden_keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	allowed_extensions JSONB NOT NULL,
	max_file_size_bytes BIGINT NOT NULL CHECK (max_file_size_bytes > 0),
	min_word_count INTEGER NOT NULL DEFAULT 0 CHECK (min_word_count >= 0),
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	faculty_id TEXT NOT NULL,
	course_id TEXT NOT NULL,
	document_type_id TEXT NOT NULL REFERENCES document_types(id),
	semester TEXT NOT NULL,
	academic_year TEXT NOT NULL,
	section TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL CHECK (version > 0),
	is_current BOOLEAN NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	staging_object_id TEXT,
	vault_object_id TEXT,
	staged BOOLEAN NOT NULL,
	status TEXT NOT NULL,
	issues JSONB NOT NULL DEFAULT '[]'::jsonb,
	analysis JSONB,
	submitted_at TIMESTAMPTZ NOT NULL,
	approved_at TIMESTAMPTZ,
	rejected_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (faculty_id, course_id, document_type_id, semester, academic_year, version),
	CHECK (staging_object_id IS NULL OR vault_object_id IS NULL)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_submissions_current
	ON submissions(faculty_id, course_id, document_type_id, semester, academic_year)
	WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_submissions_pending ON submissions(status) WHERE is_current;

CREATE TABLE IF NOT EXISTS submission_transitions (
	id BIGSERIAL PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id),
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	actor TEXT NOT NULL,
	remarks TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_submission ON submission_transitions(submission_id, id);
CREATE INDEX IF NOT EXISTS idx_transitions_recent ON submission_transitions(to_status, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
