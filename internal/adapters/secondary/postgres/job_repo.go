package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) ports.JobRepository {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, run_id, name, matrix, status, created_at, started_at, finished_at, coverage_pct`

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM job WHERE id = $1`, jobColumns)
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

func (r *jobRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM job WHERE run_id = $1 ORDER BY name`, jobColumns)
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by run: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// ClaimQueued picks the oldest queued job, marks it running and returns it.
// SKIP LOCKED keeps concurrent workers from contending on the same row.
func (r *jobRepo) ClaimQueued(ctx context.Context) (*domain.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		SELECT %s
		FROM job
		WHERE status = 'queued'
		ORDER BY created_at, name
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, jobColumns)

	job, err := scanJob(tx.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoQueuedJobs
		}
		return nil, fmt.Errorf("claim queued job: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE job SET status = 'running', started_at = NOW() WHERE id = $1
	`, job.ID)
	if err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}

	job.Status = domain.StatusRunning
	return job, nil
}

// UpdateStatus writes the status, maintaining started_at/finished_at. Terminal
// rows are frozen: attempts to move one report ErrInvalidTransition.
func (r *jobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	query := `
		UPDATE job
		SET status = $1,
			started_at = CASE WHEN started_at IS NULL AND $1 <> 'queued' THEN NOW() ELSE started_at END,
			finished_at = CASE WHEN $1 IN ('success','failure','cancelled','skipped') THEN NOW() ELSE finished_at END
		WHERE id = $2 AND status IN ('queued','running')
	`
	result, err := r.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if result.RowsAffected() == 0 {
		var current string
		err := r.pool.QueryRow(ctx, `SELECT status FROM job WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, status)
	}
	return nil
}

func (r *jobRepo) SetCoverage(ctx context.Context, id uuid.UUID, pct float64) error {
	result, err := r.pool.Exec(ctx, `UPDATE job SET coverage_pct = $1 WHERE id = $2`, pct, id)
	if err != nil {
		return fmt.Errorf("set job coverage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *jobRepo) CancelQueuedByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE job
		SET status = 'cancelled', finished_at = NOW()
		WHERE run_id = $1 AND status = 'queued'
	`, runID)
	if err != nil {
		return 0, fmt.Errorf("cancel queued jobs: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// RequeueRunning reverts running jobs to queued. Only called before the worker
// pool starts, so a running row can only be a leftover claim from a process
// that died without winding its jobs down.
func (r *jobRepo) RequeueRunning(ctx context.Context) (int, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE job
		SET status = 'queued', started_at = NULL
		WHERE status = 'running'
	`)
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (r *jobRepo) SaveStepResult(ctx context.Context, res *domain.StepResult) error {
	query := `
		INSERT INTO step_result (job_id, idx, name, status, exit_code, log_path, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (job_id, idx) DO UPDATE
		SET status = EXCLUDED.status, exit_code = EXCLUDED.exit_code,
			log_path = EXCLUDED.log_path, finished_at = EXCLUDED.finished_at
	`
	_, err := r.pool.Exec(ctx, query,
		res.JobID, res.Index, res.Name, string(res.Status),
		res.ExitCode, res.LogPath, res.StartedAt, res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save step result: %w", err)
	}
	return nil
}

func (r *jobRepo) ListStepResults(ctx context.Context, jobID uuid.UUID) ([]*domain.StepResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT job_id, idx, name, status, exit_code, log_path, started_at, finished_at
		FROM step_result
		WHERE job_id = $1
		ORDER BY idx
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	var results []*domain.StepResult
	for rows.Next() {
		res := &domain.StepResult{}
		var status string
		err := rows.Scan(&res.JobID, &res.Index, &res.Name, &status,
			&res.ExitCode, &res.LogPath, &res.StartedAt, &res.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan step result row: %w", err)
		}
		res.Status = domain.Status(status)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step result rows: %w", err)
	}
	return results, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	job := &domain.Job{}
	var matrixJSON []byte
	var status string

	err := row.Scan(
		&job.ID, &job.RunID, &job.Name, &matrixJSON, &status,
		&job.CreatedAt, &job.StartedAt, &job.FinishedAt, &job.CoveragePct,
	)
	if err != nil {
		return nil, err
	}

	if len(matrixJSON) > 0 {
		if err := json.Unmarshal(matrixJSON, &job.Matrix); err != nil {
			return nil, fmt.Errorf("unmarshal job matrix: %w", err)
		}
	}
	job.Status = domain.Status(status)
	return job, nil
}
