// Package archive keeps terminal jobs in Postgres after their Redis records
// expire.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewise/api/internal/model"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS processing_jobs (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	priority     TEXT NOT NULL,
	status       TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	company_id   TEXT NOT NULL DEFAULT '',
	candidate_id TEXT NOT NULL DEFAULT '',
	file_name    TEXT NOT NULL DEFAULT '',
	result       JSONB,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS processing_jobs_owner_idx ON processing_jobs (owner_id, created_at DESC);`

const upsertJob = `
INSERT INTO processing_jobs
	(id, type, priority, status, owner_id, company_id, candidate_id, file_name, result, error, created_at, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	result = EXCLUDED.result,
	error = EXCLUDED.error,
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at`

const selectJob = `
SELECT id, type, priority, status, owner_id, company_id, candidate_id, file_name,
       result, error, created_at, started_at, finished_at
FROM processing_jobs
WHERE id = $1`

type Repository struct {
	db DBTX
}

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// Connect opens and verifies a pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// Migrate creates the archive table if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

// Save upserts a job. Payloads and inputs are never archived.
func (r *Repository) Save(ctx context.Context, job *model.Job) error {
	var result []byte
	if len(job.Result) > 0 {
		result = job.Result
	}
	_, err := r.db.Exec(ctx, upsertJob,
		job.ID, string(job.Type), string(job.Priority), string(job.Status),
		job.OwnerID, job.CompanyID, job.CandidateID, job.FileName,
		result, job.Error, job.CreatedAt, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("archive job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns nil, nil when the job was never archived.
func (r *Repository) Get(ctx context.Context, id string) (*model.Job, error) {
	var (
		job                       model.Job
		jobType, priority, status string
		result                    []byte
		startedAt, finishedAt     *time.Time
	)
	err := r.db.QueryRow(ctx, selectJob, id).Scan(
		&job.ID, &jobType, &priority, &status, &job.OwnerID, &job.CompanyID,
		&job.CandidateID, &job.FileName, &result, &job.Error,
		&job.CreatedAt, &startedAt, &finishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load archived job %s: %w", id, err)
	}

	job.Type = model.JobType(jobType)
	job.Priority = model.Priority(priority)
	job.Status = model.JobStatus(status)
	job.StartedAt = startedAt
	job.FinishedAt = finishedAt
	if len(result) > 0 {
		job.Result = result
	}
	return &job, nil
}
