// Package postgres persists ingest job state so upload status survives
// restarts and is visible to both the API and the worker.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

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

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_jobs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	target_tokens INTEGER NOT NULL DEFAULT 0,
	overlap_tokens INTEGER NOT NULL DEFAULT 0,
	section_count INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_jobs_status ON ingest_jobs(status);
CREATE INDEX IF NOT EXISTS idx_ingest_jobs_created_at ON ingest_jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_jobs (
	id, filename, mime_type, storage_path, source_url, language, target_tokens, overlap_tokens, section_count, chunk_count, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		job.ID, job.Filename, job.MimeType, job.StoragePath, job.SourceURL, job.Language,
		job.TargetTokens, job.OverlapTokens, job.SectionCount, job.ChunkCount,
		string(job.Status), job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingest job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, source_url, language, target_tokens, overlap_tokens, section_count, chunk_count, status, error_message, created_at, updated_at
FROM ingest_jobs
WHERE id = $1
`, id)

	var job domain.IngestJob
	var status string

	err := row.Scan(
		&job.ID, &job.Filename, &job.MimeType, &job.StoragePath, &job.SourceURL, &job.Language,
		&job.TargetTokens, &job.OverlapTokens, &job.SectionCount, &job.ChunkCount,
		&status, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get ingest job", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan ingest job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ingest job status: %w", err)
	}
	return r.requireRow(res, id)
}

func (r *JobRepository) SaveResult(ctx context.Context, id string, sections, chunks int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_jobs
SET section_count = $2, chunk_count = $3, updated_at = $4
WHERE id = $1
`, id, sections, chunks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save ingest job result: %w", err)
	}
	return r.requireRow(res, id)
}

func (r *JobRepository) requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "update ingest job", fmt.Errorf("id %s", id))
	}
	return nil
}
