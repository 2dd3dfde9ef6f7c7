package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ci-runner-service/internal/core/domain"
	"ci-runner-service/internal/core/ports/output"
)

type runRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) ports.RunRepository {
	return &runRepo{pool: pool}
}

func (r *runRepo) Create(ctx context.Context, run *domain.Run, jobs []*domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the workflow row so concurrent triggers for the same workflow
	// serialise on the run number.
	var wfID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM workflow WHERE id = $1 FOR UPDATE
	`, run.WorkflowID).Scan(&wfID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrWorkflowNotFound
		}
		return fmt.Errorf("lock workflow: %w", err)
	}

	var number int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(number), 0) + 1
		FROM run
		WHERE workflow_id = $1
	`, run.WorkflowID).Scan(&number)
	if err != nil {
		return fmt.Errorf("next run number: %w", err)
	}
	run.Number = number

	_, err = tx.Exec(ctx, `
		INSERT INTO run
			(id, workflow_id, number, event, branch, target_branch, commit_sha,
			 status, created_at, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		run.ID, run.WorkflowID, run.Number, string(run.Event),
		run.Branch, run.TargetBranch, run.CommitSHA,
		string(run.Status), run.CreatedAt, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	for _, job := range jobs {
		matrixJSON, err := json.Marshal(job.Matrix)
		if err != nil {
			return fmt.Errorf("marshal job matrix: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO job
				(id, run_id, name, matrix, status, created_at, started_at, finished_at, coverage_pct)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			job.ID, job.RunID, job.Name, matrixJSON, string(job.Status),
			job.CreatedAt, job.StartedAt, job.FinishedAt, job.CoveragePct,
		)
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run tx: %w", err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, workflow_id, number, event, branch, target_branch, commit_sha,
			   status, created_at, started_at, finished_at
		FROM run
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return run, nil
}

func (r *runRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.Run, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.WorkflowID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("workflow_id = $%d", argPos))
		args = append(args, filter.WorkflowID)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Event != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argPos))
		args = append(args, filter.Event)
		argPos++
	}
	if filter.Branch != "" {
		conditions = append(conditions, fmt.Sprintf("branch = $%d", argPos))
		args = append(args, filter.Branch)
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM run WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, workflow_id, number, event, branch, target_branch, commit_sha,
			   status, created_at, started_at, finished_at
		FROM run
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, total, nil
}

// UpdateStatus records the status and maintains started_at/finished_at:
// started_at is set on the first transition out of queued, finished_at when
// the status is terminal. Terminal rows are frozen; moving one reports
// ErrInvalidTransition.
func (r *runRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	query := `
		UPDATE run
		SET status = $1,
			started_at = CASE WHEN started_at IS NULL AND $1 <> 'queued' THEN NOW() ELSE started_at END,
			finished_at = CASE WHEN $1 IN ('success','failure','cancelled') THEN NOW() ELSE finished_at END
		WHERE id = $2 AND status IN ('queued','running')
	`
	result, err := r.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if result.RowsAffected() == 0 {
		var current string
		err := r.pool.QueryRow(ctx, `SELECT status FROM run WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRunNotFound
		}
		if err != nil {
			return fmt.Errorf("update run status: %w", err)
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, status)
	}
	return nil
}

func (r *runRepo) CountActiveByWorkflow(ctx context.Context, workflowID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM run
		WHERE workflow_id = $1 AND status IN ('queued','running')
	`, workflowID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active runs: %w", err)
	}
	return count, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	run := &domain.Run{}
	var event, status string
	err := row.Scan(
		&run.ID, &run.WorkflowID, &run.Number, &event,
		&run.Branch, &run.TargetBranch, &run.CommitSHA,
		&status, &run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Event = domain.EventType(event)
	run.Status = domain.Status(status)
	return run, nil
}
